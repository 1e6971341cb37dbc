package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"servicegraph/internal/adapters/tui/styles"
	"servicegraph/internal/domain"
)

// sparkBlocks are the eighth-height block characters, lowest first
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderKeyHelp formats a key binding as help text (key + description)
func RenderKeyHelp(b key.Binding) string {
	help := b.Help()
	return fmt.Sprintf("%s %s",
		styles.HelpKey.Render(help.Key),
		styles.HelpDesc.Render(help.Desc),
	)
}

// RenderHelpLine renders multiple key bindings as a help line separated by bullets
func RenderHelpLine(bindings ...key.Binding) string {
	var parts []string
	for _, b := range bindings {
		parts = append(parts, RenderKeyHelp(b))
	}
	return strings.Join(parts, styles.HelpSeparator.String())
}

// RenderMessage renders a message with appropriate styling based on isError
func RenderMessage(message string, isError bool) string {
	if message == "" {
		return ""
	}
	if isError {
		return styles.ErrorMsg.Render(message)
	}
	return styles.Success.Render(message)
}

// RenderLabelValue renders a label: value pair
func RenderLabelValue(label, value string) string {
	return fmt.Sprintf("%s %s",
		styles.InputLabel.Render(label+":"),
		value,
	)
}

// Sparkline renders histogram counts as block characters scaled to the
// largest bucket. Only the last width buckets are drawn.
func Sparkline(h *domain.Histogram, width int) string {
	if h == nil || len(h.Buckets) == 0 || width <= 0 {
		return ""
	}
	buckets := h.Buckets
	if len(buckets) > width {
		buckets = buckets[len(buckets)-width:]
	}

	peak := 0
	for _, b := range buckets {
		peak = max(peak, b.N)
	}

	var sb strings.Builder
	for _, b := range buckets {
		if peak == 0 || b.N <= 0 {
			sb.WriteRune(' ')
			continue
		}
		level := (b.N*len(sparkBlocks) - 1) / peak
		sb.WriteRune(sparkBlocks[min(level, len(sparkBlocks)-1)])
	}
	return sb.String()
}

// WidthBar draws an edge width style value as a run of heavy line characters
func WidthBar(width string) string {
	var w float64
	if _, err := fmt.Sscanf(width, "%f", &w); err != nil || w < 1 {
		w = 1
	}
	return strings.Repeat("━", int(w+0.5))
}

// Truncate shortens s to n runes with an ellipsis
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
