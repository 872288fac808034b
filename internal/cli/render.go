package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskflow/internal/client"
	"taskflow/internal/model"
)

var statusMarks = map[model.Status]string{
	model.StatusTodo:       "[ ]",
	model.StatusInProgress: "[~]",
	model.StatusDone:       "[x]",
}

type styles struct {
	header lipgloss.Style
	filter lipgloss.Style
	marks  map[model.Status]lipgloss.Style
	high   lipgloss.Style
}

// newStyles binds the palette to w so colours are dropped when w is not a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		filter: r.NewStyle().Foreground(lipgloss.Color("8")),
		marks: map[model.Status]lipgloss.Style{
			model.StatusTodo:       r.NewStyle(),
			model.StatusInProgress: r.NewStyle().Foreground(lipgloss.Color("11")),
			model.StatusDone:       r.NewStyle().Foreground(lipgloss.Color("10")),
		},
		high: r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// renderDashboard prints the stats line followed by the filtered rows. Row
// numbers index the unfiltered collection so they stay valid across filters.
func renderDashboard(w io.Writer, view client.View, all []client.Task) string {
	st := newStyles(w)

	var sb strings.Builder
	sb.WriteString(st.header.Render(fmt.Sprintf("Total %d | To do %d | In progress %d | Done %d",
		view.Stats.Total, view.Stats.Todo, view.Stats.InProgress, view.Stats.Done)))
	sb.WriteByte('\n')
	if view.Filter != client.FilterAll {
		sb.WriteString(st.filter.Render("Filter: " + string(view.Filter)))
		sb.WriteByte('\n')
	}

	if len(view.Tasks) == 0 {
		sb.WriteString("No tasks.\n")
		return sb.String()
	}
	for _, t := range view.Tasks {
		n := slices.IndexFunc(all, func(a client.Task) bool { return a.ID == t.ID }) + 1
		priority := string(t.Priority)
		if t.Priority == model.PriorityHigh {
			priority = st.high.Render(priority)
		}
		priority += strings.Repeat(" ", max(0, 6-len(t.Priority)))
		fmt.Fprintf(&sb, "%4d  %s %s %s\n", n, st.marks[t.Status].Render(statusMarks[t.Status]), priority, t.Title)
	}
	return sb.String()
}
