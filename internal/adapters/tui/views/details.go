package views

import (
	"fmt"
	"strings"

	"servicegraph/internal/adapters/tui/styles"
	"servicegraph/internal/domain"
)

// RenderDetails renders the details panel for a resolved selection
func RenderDetails(view domain.DetailsView, ok bool, width int) string {
	var body string
	switch {
	case !ok:
		body = styles.MutedText.Render("Select a node or an edge.")
	case view.Node != nil:
		body = renderNodeDetails(view.Node)
	case view.Edge != nil:
		body = renderEdgeDetails(view.Edge)
	}

	panel := styles.Panel
	if width > 4 {
		panel = panel.Width(width - 4)
	}
	return panel.Render(body)
}

func renderNodeDetails(d *domain.NodeDetails) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(d.Node.Name))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Type", string(d.Node.Type)) + "\n")
	b.WriteString(RenderLabelValue("ID", d.Node.ID.String()) + "\n")
	if d.Node.Description != "" {
		b.WriteString(RenderLabelValue("Description", d.Node.Description) + "\n")
	}
	b.WriteString(RenderLabelValue("Health", healthText(d.Health)) + "\n")

	activity := string(d.Activity)
	if d.LastActivity != "" {
		activity += " (" + d.LastActivity + ")"
	}
	b.WriteString(RenderLabelValue("Activity", activity) + "\n")
	b.WriteString(RenderLabelValue("Calls", countersText(d.Node.Counters)) + "\n")

	if d.Parent != nil {
		b.WriteString(RenderLabelValue("Service", d.Parent.Name) + "\n")
	}
	if len(d.Children) > 0 {
		b.WriteString("\n" + styles.InputLabel.Render("Transactions") + "\n")
		for _, c := range d.Children {
			b.WriteString("  " + c.Name + "\n")
		}
	}
	if n := len(d.Incoming) + len(d.Outgoing); n > 0 {
		b.WriteString("\n" + RenderLabelValue("Edges", fmt.Sprintf("%d in, %d out", len(d.Incoming), len(d.Outgoing))) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEdgeDetails(d *domain.EdgeDetails) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(d.Source.Name + " → " + d.Destination.Name))
	b.WriteString("\n")
	b.WriteString(RenderLabelValue("Source", fmt.Sprintf("%s (%s)", d.Source.Name, d.Source.Type)) + "\n")
	b.WriteString(RenderLabelValue("Destination", fmt.Sprintf("%s (%s)", d.Destination.Name, d.Destination.Type)) + "\n")
	if d.Edge.Description != "" {
		b.WriteString(RenderLabelValue("Description", d.Edge.Description) + "\n")
	}
	b.WriteString(RenderLabelValue("Health", healthText(d.Health)) + "\n")
	b.WriteString(RenderLabelValue("Volume", fmt.Sprintf("%d", d.Volume)) + "\n")
	b.WriteString(RenderLabelValue("Calls", countersText(d.Edge.Counters)))
	return b.String()
}

func healthText(h domain.Health) string {
	if h == domain.Unhealthy {
		return styles.ErrorMsg.Render(string(h))
	}
	return styles.Success.Render(string(h))
}

func countersText(c domain.Counters) string {
	return fmt.Sprintf("ok %d · expected %d · unexpected %d", c.OK, c.ExpectedError, c.UnexpectedError)
}
