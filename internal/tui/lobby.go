package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lox/tourneykit/sdk"
)

type rowKind int

const (
	rowResume rowKind = iota
	rowReview
	rowTournament
	rowExit
)

// row is one selectable line in the lobby
type row struct {
	kind       rowKind
	label      string
	detail     string
	tournament string
	match      string
}

func (r row) selection() sdk.Selection {
	switch r.kind {
	case rowResume:
		return sdk.Selection{MatchID: r.match}
	case rowReview:
		return sdk.Selection{MatchID: r.match, Review: true}
	case rowTournament:
		return sdk.Selection{TournamentID: r.tournament}
	default:
		return sdk.Selection{Exit: true}
	}
}

// LobbyModel is the bubbletea model for the tournament lobby
type LobbyModel struct {
	lobby  sdk.Lobby
	styles styles
	keys   keyMap
	help   help.Model
	filter textinput.Model

	rows      []row
	waiting   []sdk.MatchSummary
	matched   int
	cursor    int
	filtering bool

	selection *sdk.Selection
	cancelled bool
	width     int
}

// NewLobbyModel creates a lobby model with plain styles
func NewLobbyModel(lobby sdk.Lobby) *LobbyModel {
	return newLobbyModel(lobby, newStyles(lipgloss.DefaultRenderer()))
}

func newLobbyModel(lobby sdk.Lobby, st styles) *LobbyModel {
	ti := textinput.New()
	ti.Placeholder = "filter tournaments"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.PromptStyle = st.Selected
	ti.TextStyle = st.Normal

	m := &LobbyModel{
		lobby:  lobby,
		styles: st,
		keys:   defaultKeys(),
		help:   help.New(),
		filter: ti,
	}
	m.keys.Back.SetEnabled(lobby.AllowExit)
	m.rebuild()
	return m
}

// Selection returns the user's choice once the program has finished.
// ok is false when the user quit without choosing.
func (m *LobbyModel) Selection() (sdk.Selection, bool) {
	if m.selection == nil {
		return sdk.Selection{}, false
	}
	return *m.selection, true
}

// Cancelled reports whether the user quit with ctrl+c
func (m *LobbyModel) Cancelled() bool {
	return m.cancelled
}

// rebuild recomputes the selectable rows from the lobby and filter
func (m *LobbyModel) rebuild() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	m.rows = m.rows[:0]
	m.waiting = m.waiting[:0]
	for _, match := range m.lobby.Matches {
		switch {
		case match.Complete && match.Mode == sdk.ModeTurnBased:
			m.rows = append(m.rows, row{
				kind:   rowReview,
				label:  "Review " + match.Name,
				detail: fmt.Sprintf("finished after %d turns", match.Turn),
				match:  match.ID,
			})
		case match.Complete:
			// standard results have nothing to replay
		case match.YourTurn:
			m.rows = append(m.rows, row{
				kind:   rowResume,
				label:  "Resume " + match.Name,
				detail: resumeDetail(match),
				match:  match.ID,
			})
		default:
			m.waiting = append(m.waiting, match)
		}
	}

	m.matched = 0
	for _, t := range m.lobby.Tournaments {
		if query != "" && !strings.Contains(strings.ToLower(t.Name), query) &&
			!strings.Contains(strings.ToLower(t.ID), query) {
			continue
		}
		m.rows = append(m.rows, row{
			kind:       rowTournament,
			label:      t.Name,
			detail:     tournamentDetail(t),
			tournament: t.ID,
		})
		m.matched++
	}

	if m.lobby.AllowExit {
		m.rows = append(m.rows, row{kind: rowExit, label: "Back to game"})
	}

	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

func resumeDetail(m sdk.MatchSummary) string {
	if m.Mode == sdk.ModeTurnBased {
		return fmt.Sprintf("your turn (turn %d)", m.Turn+1)
	}
	return "score not submitted"
}

func tournamentDetail(t sdk.Tournament) string {
	parts := []string{fmt.Sprintf("%d players", t.PlayersPerMatch)}
	if t.Mode == sdk.ModeTurnBased {
		parts = append(parts, "turn-based")
	}
	if t.Description != "" {
		parts = append(parts, t.Description)
	}
	return strings.Join(parts, " · ")
}

// Init initializes the lobby model
func (m *LobbyModel) Init() tea.Cmd {
	return nil
}

// Update handles messages in the lobby
func (m *LobbyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.cancelled = true
			return m, tea.Quit
		}
		if m.filtering {
			return m.updateFilter(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Filter):
			m.filtering = true
			return m, m.filter.Focus()
		case key.Matches(msg, m.keys.Back):
			m.selection = &sdk.Selection{Exit: true}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			if len(m.rows) == 0 {
				return m, nil
			}
			sel := m.rows[m.cursor].selection()
			m.selection = &sel
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *LobbyModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.rebuild()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	m.rebuild()
	return m, cmd
}

// status describes how the lobby is laid out. The lobby stays silent while
// the game plays its own music.
func (m *LobbyModel) status() string {
	status := m.lobby.Orientation.String()
	if m.lobby.BackgroundMusic {
		status += " · lobby music off"
	}
	return status
}

// View renders the lobby
func (m *LobbyModel) View() string {
	if m.selection != nil || m.cancelled {
		return ""
	}
	st := m.styles

	var b strings.Builder
	title := "Tournaments"
	if m.lobby.Player != nil && m.lobby.Player.DisplayName != "" {
		title += " · " + m.lobby.Player.DisplayName
	}
	b.WriteString(st.Header.Render(title))
	b.WriteString("\n")
	b.WriteString(st.Info.Render(m.status()))
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	if m.matched == 0 {
		msg := "No tournaments available"
		if m.filter.Value() != "" {
			msg = "No tournaments match"
		}
		b.WriteString(st.Warning.Render(msg))
		b.WriteString("\n")
	}
	for i, r := range m.rows {
		cursor := "  "
		label := st.Normal.Render(r.label)
		if i == m.cursor {
			cursor = st.Selected.Render("> ")
			label = st.Selected.Render(r.label)
		}
		if r.kind == rowResume {
			label += " " + st.Turn.Render("●")
		}
		b.WriteString(cursor + label)
		if r.detail != "" {
			b.WriteString("  " + st.Info.Render(r.detail))
		}
		b.WriteString("\n")
	}

	if len(m.waiting) > 0 {
		b.WriteString("\n")
		b.WriteString(st.Section.Render("Waiting on opponents"))
		b.WriteString("\n")
		for _, w := range m.waiting {
			b.WriteString("  " + st.Info.Render(w.Name))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
