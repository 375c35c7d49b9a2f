package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/tourneykit/internal/randutil"
	"github.com/lox/tourneykit/sdk"
	"github.com/lox/tourneykit/sdk/local"
	"golang.org/x/sync/errgroup"
)

// SwarmCmd runs many headless dice players at once
type SwarmCmd struct {
	Server     string        `short:"s" help:"Server URL (sandbox default when empty)"`
	Local      bool          `help:"Play against an in-process engine instead of a server"`
	Players    int           `short:"n" default:"4" help:"Number of players"`
	Matches    int           `short:"m" default:"3" help:"Matches each player plays"`
	Tournament string        `short:"t" help:"Tournament ID or name (first one when empty)"`
	GameID     string        `default:"dice" help:"Game ID sent to the server"`
	Seed       uint64        `help:"Seed for start-up jitter"`
	Jitter     time.Duration `default:"200ms" help:"Maximum delay before each launch"`
	LogLevel   string        `short:"l" default:"info" enum:"debug,info,warn,error" help:"Log level"`
}

func (c *SwarmCmd) Run() error {
	logger, err := newLogger(c.LogLevel)
	if err != nil {
		return err
	}
	if c.Players < 1 || c.Matches < 1 {
		return fmt.Errorf("players and matches must be positive")
	}

	var engine *local.Engine
	if c.Local {
		if engine, err = localEngine(); err != nil {
			return err
		}
		defer engine.Close()
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := range c.Players {
		name := fmt.Sprintf("bot-%02d", i+1)
		bot := &swarmBot{
			name:    name,
			backend: newBackend(engine, c.Server, logger),
			logger:  logger.With("player", name),
			jitter:  c.Jitter,
			rng:     randutil.New(c.Seed + uint64(i)),
		}
		g.Go(func() error {
			return bot.run(ctx, c.GameID, c.Tournament, c.Matches)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Swarm finished", "players", c.Players, "matches", c.Matches, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

type swarmBot struct {
	name    string
	backend sdk.Backend
	logger  *log.Logger
	jitter  time.Duration
	rng     *rand.Rand
}

func (b *swarmBot) run(ctx context.Context, gameID, tournament string, matches int) error {
	session := sdk.NewSession(b.backend,
		sdk.HeadlessPresenter{Tournament: tournament, ResumeTurns: true},
		sdk.WithLogger(b.logger))
	defer session.Close()

	game := newDiceGame(session, io.Discard)
	if err := session.Initialize(ctx, sdk.Config{
		GameID:      gameID,
		Environment: sdk.EnvironmentSandbox,
		PlayerName:  b.name,
	}, game); err != nil {
		return fmt.Errorf("%s: initialize: %w", b.name, err)
	}

	for range matches {
		if b.jitter > 0 {
			select {
			case <-time.After(time.Duration(b.rng.Int64N(int64(b.jitter)))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		outcome, err := session.Launch(ctx)
		if err != nil {
			return fmt.Errorf("%s: launch: %w", b.name, err)
		}
		score, err := game.play(ctx, outcome)
		if err != nil {
			return fmt.Errorf("%s: play: %w", b.name, err)
		}
		b.logger.Info("Match played", "outcome", outcome, "score", score)
	}
	return nil
}
