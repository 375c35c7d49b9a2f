package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lox/tourneykit/sdk"
)

// ResultModel shows the outcome of a submitted or abandoned match
type ResultModel struct {
	result   sdk.Result
	styles   styles
	keys     keyMap
	viewport viewport.Model
	done     bool
}

// NewResultModel creates a result screen with default styles
func NewResultModel(result sdk.Result) *ResultModel {
	return newResultModel(result, newStyles(lipgloss.DefaultRenderer()))
}

func newResultModel(result sdk.Result, st styles) *ResultModel {
	m := &ResultModel{
		result: result,
		styles: st,
		keys:   defaultKeys(),
	}
	m.viewport = viewport.New(resultSize(result.Orientation))
	m.viewport.SetContent(m.body())
	return m
}

// Init initializes the result model
func (m *ResultModel) Init() tea.Cmd {
	return nil
}

// Update handles messages on the result screen
func (m *ResultModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = max(msg.Width-4, 1)
		m.viewport.Height = max(msg.Height-6, 1)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select), key.Matches(msg, m.keys.Back),
			key.Matches(msg, m.keys.Quit), msg.String() == "q":
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the result screen
func (m *ResultModel) View() string {
	if m.done {
		return ""
	}
	title := m.styles.Header.Render(m.title())
	hint := m.styles.Info.Render("enter to continue")
	return lipgloss.JoinVertical(lipgloss.Left, title, m.styles.Pane.Render(m.viewport.View()), hint)
}

func (m *ResultModel) title() string {
	switch {
	case m.result.Err != nil:
		return "Match failed"
	case m.result.Forfeit:
		return "Match forfeited"
	case m.result.Turn:
		return "Turn submitted"
	default:
		return "Match complete"
	}
}

func (m *ResultModel) body() string {
	st := m.styles
	var b strings.Builder

	if m.result.MatchID != "" {
		b.WriteString(st.Info.Render("Match " + m.result.MatchID))
		b.WriteString("\n\n")
	}

	switch {
	case m.result.Err != nil:
		b.WriteString(st.Error.Render(m.result.Err.Error()))
	case m.result.Forfeit:
		b.WriteString(st.Warning.Render("You left the match. It counts as a forfeit."))
	case m.result.Turn:
		b.WriteString(st.Success.Render(fmt.Sprintf("Score so far: %s", formatScore(m.result.Score))))
		b.WriteString("\n")
		b.WriteString(st.Normal.Render("Your opponent will be notified."))
	default:
		b.WriteString(st.Success.Render(fmt.Sprintf("Final score: %s", formatScore(m.result.Score))))
	}
	return b.String()
}

// resultSize fits the result pane to the locked orientation.
func resultSize(o sdk.Orientation) (width, height int) {
	if o == sdk.OrientationPortrait {
		return 40, 12
	}
	return 60, 8
}

func formatScore(score float64) string {
	if score == float64(int64(score)) {
		return fmt.Sprintf("%d", int64(score))
	}
	return fmt.Sprintf("%.2f", score)
}
