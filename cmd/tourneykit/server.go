package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/lox/tourneykit/internal/auth"
	"github.com/lox/tourneykit/internal/server"
	"github.com/lox/tourneykit/internal/tournament"
	"github.com/lox/tourneykit/sdk"
)

// ServerCmd runs the sandbox tournament server
type ServerCmd struct {
	Config   string `short:"c" default:"tourneykit-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Address to bind to as host:port (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	DataDir  string `help:"Directory for match snapshots (overrides config)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.applyOverrides(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	defs, err := cfg.Definitions()
	if err != nil {
		return err
	}
	env, err := sdk.ParseEnvironment(cfg.Server.Environment)
	if err != nil {
		return err
	}

	engine, err := tournament.New(tournament.Config{
		Tournaments: defs,
		DataDir:     cfg.Server.DataDir,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("Failed to save matches", "error", err)
		}
	}()

	logger.Info("Starting tourneykit server",
		"addr", cfg.GetServerAddress(),
		"environment", env,
		"game", cfg.Server.GameID,
		"tournaments", len(defs),
		"dataDir", cfg.Server.DataDir)

	opts := server.Options{
		GameID:       cfg.Server.GameID,
		Environment:  env,
		AuthFailOpen: cfg.Server.AuthFailOpen,
	}
	switch {
	case cfg.Server.AuthURL != "":
		opts.Auth = auth.NewHTTPValidator(cfg.Server.AuthURL, cfg.Server.AuthSecret)
		logger.Info("Player tokens verified externally", "url", cfg.Server.AuthURL, "failOpen", cfg.Server.AuthFailOpen)
	case cfg.Server.AuthJWTSecret != "":
		opts.Auth = auth.NewJWTValidator(cfg.Server.AuthJWTSecret)
		logger.Info("Player tokens verified as signed JWTs")
	}
	srv := server.NewServer(engine, opts, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()
	return srv.Serve(ctx, cfg.GetServerAddress())
}

func (c *ServerCmd) applyOverrides(cfg *server.ServerConfig) error {
	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid --addr port: %w", err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = p
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.DataDir != "" {
		cfg.Server.DataDir = c.DataDir
	}
	return nil
}
