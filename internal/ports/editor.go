package ports

import "os/exec"

// EditorOpener opens files in the user's editor
type EditorOpener interface {
	// OpenFile opens path and waits for the editor to exit
	OpenFile(path string) error

	// Command returns the editor command for path without starting it,
	// for handing to bubbletea's ExecProcess
	Command(path string) (*exec.Cmd, error)
}
