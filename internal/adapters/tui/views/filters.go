package views

import (
	"fmt"
	"slices"
	"strings"

	"servicegraph/internal/adapters/tui/styles"
	"servicegraph/internal/domain"
)

// RenderFilterBar shows the active predicates and the traffic sparkline
func RenderFilterBar(q domain.Query, window domain.TimeWindow, h *domain.Histogram, width int) string {
	var parts []string
	parts = append(parts, styles.MutedText.Render("from"))
	parts = append(parts, toggle("1", "svc", slices.Contains(q.FromTypes, domain.NodeTypeService)))
	parts = append(parts, toggle("2", "txn", slices.Contains(q.FromTypes, domain.NodeTypeTransaction)))
	parts = append(parts, styles.MutedText.Render("to"))
	parts = append(parts, toggle("3", "svc", slices.Contains(q.ToTypes, domain.NodeTypeService)))
	parts = append(parts, toggle("4", "txn", slices.Contains(q.ToTypes, domain.NodeTypeTransaction)))
	parts = append(parts, styles.MutedText.Render("status"))
	parts = append(parts, toggle("5", "ok", slices.Contains(q.EdgeStatuses, domain.EdgeStatusOK)))
	parts = append(parts, toggle("6", "exp", slices.Contains(q.EdgeStatuses, domain.EdgeStatusExpectedError)))
	parts = append(parts, toggle("7", "unexp", slices.Contains(q.EdgeStatuses, domain.EdgeStatusUnexpectedError)))
	parts = append(parts, toggle("t", window.Name, window.Duration > 0 || q.EndDate != nil))
	parts = append(parts, toggle("v", fmt.Sprintf("≥%d", q.MinVolume), q.MinVolume > 0))

	line := strings.Join(parts, " ")
	spark := Sparkline(h, max(10, width-4))
	if spark == "" {
		return line
	}
	return line + "\n" + styles.Sparkline.Render(spark)
}

func toggle(key, label string, on bool) string {
	if on {
		return styles.FilterOn.Render(key + " " + label)
	}
	return styles.FilterOff.Render(key + " " + label)
}
