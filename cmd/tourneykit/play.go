package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lox/tourneykit/internal/tui"
	"github.com/lox/tourneykit/sdk"
	"github.com/lox/tourneykit/sdk/config"
	"github.com/lox/tourneykit/sdk/local"
)

// PlayCmd plays the dice demo with the terminal lobby
type PlayCmd struct {
	Config   string `short:"c" default:"tourneykit.hcl" help:"Path to client HCL configuration"`
	Player   string `short:"p" help:"Player name (overrides config)"`
	Server   string `short:"s" help:"Server URL (overrides config)"`
	Local    bool   `help:"Play against an in-process engine instead of a server"`
	Headless bool   `help:"Enter the first tournament without showing the lobby"`
	LogLevel string `short:"l" default:"warn" enum:"debug,info,warn,error" help:"Log level"`
}

func (c *PlayCmd) Run() error {
	logger, err := newLogger(c.LogLevel)
	if err != nil {
		return err
	}

	base := config.Default()
	base.GameID = "dice"
	base.AllowExit = true
	cfg, err := config.Load(c.Config, base)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Player != "" {
		cfg.PlayerName = c.Player
	}
	if c.Server != "" {
		cfg.ServerURL = c.Server
	}
	if cfg.PlayerName == "" {
		cfg.PlayerName = defaultPlayerName()
	}

	var engine *local.Engine
	if c.Local {
		if engine, err = localEngine(); err != nil {
			return err
		}
		defer engine.Close()
	}

	var presenter sdk.Presenter = tui.New(tui.WithLogger(logger))
	if c.Headless {
		presenter = sdk.HeadlessPresenter{ResumeTurns: true}
	}

	opts := append(cfg.SessionOptions(), sdk.WithLogger(logger))
	session := sdk.NewSession(newBackend(engine, cfg.ServerURL, logger), presenter, opts...)
	defer session.Close()

	ctx, cancel := signalContext(logger)
	defer cancel()

	game := newDiceGame(session, os.Stdout)
	if err := session.Initialize(ctx, cfg.SessionConfig(), game); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	for {
		outcome, err := session.Launch(ctx)
		switch {
		case errors.Is(err, tui.ErrCancelled), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		case outcome == sdk.OutcomeExited:
			return nil
		}

		if _, err := game.play(ctx, outcome); err != nil {
			return err
		}
		if c.Headless {
			return nil
		}
	}
}
