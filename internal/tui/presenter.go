// Package tui renders the tournament lobby and result screens in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/tourneykit/sdk"
	"github.com/muesli/termenv"
)

// ErrCancelled is returned when the user quits the lobby without choosing
var ErrCancelled = errors.New("lobby cancelled")

// Presenter implements sdk.Presenter with bubbletea programs
type Presenter struct {
	input     io.Reader
	output    io.Writer
	profile   *termenv.Profile
	altScreen bool
	logger    *log.Logger
}

var _ sdk.Presenter = (*Presenter)(nil)

// Option configures a Presenter
type Option func(*Presenter)

// WithInput reads keys from r instead of stdin
func WithInput(r io.Reader) Option {
	return func(p *Presenter) { p.input = r }
}

// WithOutput renders to w instead of stdout
func WithOutput(w io.Writer) Option {
	return func(p *Presenter) { p.output = w }
}

// WithColorProfile forces a colour profile instead of detecting one
func WithColorProfile(profile termenv.Profile) Option {
	return func(p *Presenter) { p.profile = &profile }
}

// WithAltScreen toggles the alternate screen buffer
func WithAltScreen(enabled bool) Option {
	return func(p *Presenter) { p.altScreen = enabled }
}

// WithLogger sets the presenter logger
func WithLogger(logger *log.Logger) Option {
	return func(p *Presenter) { p.logger = logger.WithPrefix("tui") }
}

// New creates a terminal presenter
func New(opts ...Option) *Presenter {
	p := &Presenter{
		input:     os.Stdin,
		output:    os.Stdout,
		altScreen: true,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Presenter) styles() styles {
	var opts []termenv.OutputOption
	if p.profile != nil {
		opts = append(opts, termenv.WithProfile(*p.profile))
	}
	return newStyles(lipgloss.NewRenderer(p.output, opts...))
}

func (p *Presenter) run(ctx context.Context, model tea.Model) error {
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(p.input),
		tea.WithOutput(p.output),
	}
	if p.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("run program: %w", err)
	}
	return ctx.Err()
}

// PresentLobby shows the lobby until the user picks an entry
func (p *Presenter) PresentLobby(ctx context.Context, lobby sdk.Lobby) (sdk.Selection, error) {
	model := newLobbyModel(lobby, p.styles())
	if err := p.run(ctx, model); err != nil {
		return sdk.Selection{}, err
	}

	sel, ok := model.Selection()
	if !ok {
		return sdk.Selection{}, ErrCancelled
	}
	p.logger.Debug("Lobby selection", "tournament", sel.TournamentID, "match", sel.MatchID, "review", sel.Review, "exit", sel.Exit)
	return sel, nil
}

// PresentResult shows the result screen until dismissed
func (p *Presenter) PresentResult(ctx context.Context, result sdk.Result) error {
	return p.run(ctx, newResultModel(result, p.styles()))
}
