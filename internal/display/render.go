package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/packagewjx/meshbench/internal/aggregate"
	"github.com/packagewjx/meshbench/internal/usage"
)

const suppressedRatio = "--------"

func formatRatio(v float64, valid bool) string {
	if !valid {
		return suppressedRatio
	}
	return fmt.Sprintf("%7.2f%%", v)
}

// Render lays out one tick the way the run log reads: the ledgers in item
// order, the mesh ratios ahead of the per-pod section, then the nodes.
func Render(s *aggregate.Summary) string {
	if s == nil {
		return faintStyle.Render("waiting for the first sample...")
	}

	b := &strings.Builder{}
	header := fmt.Sprintf("%s %s %s",
		s.Time.Format(aggregate.TimestampLayout),
		stateStyle(s.Collecting).Render(s.State.String()),
		s.Path)
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n--------\n\n")

	lastCategory := ""
	for _, item := range s.Items {
		if item.IsSeparator() {
			b.WriteString("\n")
			continue
		}
		if item.Category != lastCategory {
			lastCategory = item.Category
			if item.Category == usage.CategoryPod {
				writeRatios(b, s.Ratios)
			}
		}
		fmt.Fprintf(b, "%-36s %s\n", item.Key, item.Usage.String())
	}

	if len(s.Nodes) > 0 {
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(nodeTable(s.Nodes).View()))
		b.WriteString("\n")
	}
	return b.String()
}

func writeRatios(b *strings.Builder, ratios []aggregate.Ratio) {
	for _, r := range ratios {
		label := r.Name + " CPU ratio:"
		fmt.Fprintf(b, "%-24s %8s (smaller is better)\n", label, formatRatio(r.CPU, r.CPUValid))
		label = r.Name + " memory ratio:"
		fmt.Fprintf(b, "%-24s %8s (smaller is better)\n", label, formatRatio(r.Memory, r.MemoryValid))
		b.WriteString("\n")
	}
}

func nodeTable(nodes []aggregate.NodeSummary) table.Model {
	columns := []table.Column{
		{Title: "Node", Width: 28},
		{Title: "CPU", Width: 10},
		{Title: "CPU%", Width: 7},
		{Title: "Memory", Width: 10},
		{Title: "Mem%", Width: 7},
	}
	rows := make([]table.Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, table.Row{
			n.Name,
			fmt.Sprintf("%d mC", int64(n.Assigned.CPU.Current)/1000000),
			fmt.Sprintf("%.1f", n.CPUFraction*100),
			fmt.Sprintf("%d MiB", int64(n.Assigned.Memory.Current)/1048576),
			fmt.Sprintf("%.1f", n.MemoryFraction*100),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(headerStyle.GetForeground())
	styles.Selected = styles.Cell
	t.SetStyles(styles)
	return t
}
