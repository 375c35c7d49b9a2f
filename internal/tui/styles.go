package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// styles are bound to a renderer so the presenter's output decides the
// colour profile rather than stdout.
type styles struct {
	Header   lipgloss.Style
	Section  lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Turn     lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Pane     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		Header: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1),
		Section: r.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true),
		Selected: r.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Normal: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")),
		Turn: r.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true),
		Success: r.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true),
		Error: r.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true),
		Warning: r.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true),
		Info: r.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Pane: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1),
	}
}
