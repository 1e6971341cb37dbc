package editor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// Opener implements ports.EditorOpener and writes payload dumps for inspection
type Opener struct {
	dumpDir string
}

var _ ports.EditorOpener = (*Opener)(nil)

// NewOpener creates an opener that writes dumps under dumpDir, or the OS temp dir when empty
func NewOpener(dumpDir string) *Opener {
	return &Opener{dumpDir: dumpDir}
}

// OpenFile opens a file in the user's editor and waits for it to exit
func (o *Opener) OpenFile(path string) error {
	cmd, err := o.Command(path)
	if err != nil {
		return err
	}
	return cmd.Run()
}

// Command returns the editor command for path. $EDITOR may carry arguments, e.g. "code -w".
func (o *Opener) Command(path string) (*exec.Cmd, error) {
	argv := o.findEditor()
	if len(argv) == 0 {
		return nil, fmt.Errorf("no editor found: set $EDITOR environment variable")
	}

	cmd := exec.Command(argv[0], append(argv[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// DumpPayload writes p as indented JSON and returns the file path
func (o *Opener) DumpPayload(p *domain.Payload, at time.Time) (string, error) {
	dir := o.dumpDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("servicegraph-%s.json", at.UTC().Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write payload: %w", err)
	}
	return path, nil
}

// InspectCommand dumps p and returns the editor command that opens it
func (o *Opener) InspectCommand(p *domain.Payload, at time.Time) (*exec.Cmd, error) {
	path, err := o.DumpPayload(p, at)
	if err != nil {
		return nil, err
	}
	return o.Command(path)
}

func (o *Opener) findEditor() []string {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}

	for _, editor := range []string{"nvim", "vim", "vi", "nano"} {
		if path, err := exec.LookPath(editor); err == nil {
			return []string{path}
		}
	}
	return nil
}
