package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/pie/pkg/domain"
)

// Report summarizes one run for display.
type Report struct {
	App      string
	Key      string
	Duration time.Duration
	Views    []*domain.ResultView
	// Limit caps the number of vertex rows; zero shows them all.
	Limit int
}

// Markdown renders the report as a markdown document: a per-partition summary
// followed by vertex values ordered by id.
func (r Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.App)
	if r.Key != "" {
		fmt.Fprintf(&sb, "Published as `%s` in %s.\n\n", r.Key, r.Duration.Round(time.Millisecond))
	}

	sb.WriteString("| fragment | vertices | supersteps |\n|---:|---:|---:|\n")
	type row struct {
		v   domain.VertexID
		val any
	}
	var rows []row
	for _, view := range r.Views {
		fmt.Fprintf(&sb, "| %d | %d | %d |\n", view.FragmentID, len(view.Values), view.Supersteps)
		for v, val := range view.Values {
			rows = append(rows, row{v, val})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].v < rows[j].v })

	sb.WriteString("\n| vertex | value |\n|---:|---|\n")
	shown := rows
	if r.Limit > 0 && len(rows) > r.Limit {
		shown = rows[:r.Limit]
	}
	for _, row := range shown {
		fmt.Fprintf(&sb, "| %d | %v |\n", row.v, row.val)
	}
	if len(shown) < len(rows) {
		fmt.Fprintf(&sb, "\n_%d more vertices not shown._\n", len(rows)-len(shown))
	}
	return sb.String()
}
