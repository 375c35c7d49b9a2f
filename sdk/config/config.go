// Package config loads tourneykit client settings from environment
// variables and HCL files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lox/tourneykit/sdk"
)

// Environment variable names read by FromEnv and LoadClientConfig
const (
	// EnvGameID is the game's tournament id
	EnvGameID = "TOURNEYKIT_GAME_ID"

	// EnvEnvironment selects "production" or "sandbox" (the default)
	EnvEnvironment = "TOURNEYKIT_ENVIRONMENT"

	// EnvServer is the websocket URL of the tournament server
	EnvServer = "TOURNEYKIT_SERVER"

	// EnvPlayer is the player's display name
	EnvPlayer = "TOURNEYKIT_PLAYER"

	// EnvAllowExit lets the user leave the tournament UI
	EnvAllowExit = "TOURNEYKIT_ALLOW_EXIT"

	// EnvDebug makes lifecycle misuse panic
	EnvDebug = "TOURNEYKIT_DEBUG"

	// EnvToken is sent to servers that verify players
	EnvToken = "TOURNEYKIT_TOKEN"
)

// ClientConfig holds everything needed to build a session
type ClientConfig struct {
	GameID      string
	Environment sdk.Environment
	// ServerURL is optional in the sandbox environment
	ServerURL  string
	PlayerName string
	Token      string
	AllowExit  bool
	Debug      bool
	// PresentationTimeout bounds each lobby or result screen
	PresentationTimeout time.Duration
}

// Default returns the settings used when nothing is configured
func Default() *ClientConfig {
	return &ClientConfig{
		Environment:         sdk.EnvironmentSandbox,
		PresentationTimeout: sdk.DefaultPresentationTimeout,
	}
}

// FromEnv parses configuration from environment variables.
// Returns an error if required variables are missing or invalid.
func FromEnv() (*ClientConfig, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) applyEnv() error {
	if v := os.Getenv(EnvGameID); v != "" {
		c.GameID = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		env, err := sdk.ParseEnvironment(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", EnvEnvironment, err)
		}
		c.Environment = env
	}
	if v := os.Getenv(EnvServer); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvPlayer); v != "" {
		c.PlayerName = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvAllowExit); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", EnvAllowExit, err)
		}
		c.AllowExit = b
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks the configuration is usable
func (c *ClientConfig) Validate() error {
	if c.GameID == "" {
		return fmt.Errorf("game id is required (set %s)", EnvGameID)
	}
	if c.Environment == sdk.EnvironmentProduction && c.ServerURL == "" {
		return fmt.Errorf("production environment requires a server URL (set %s)", EnvServer)
	}
	if c.PresentationTimeout <= 0 {
		return fmt.Errorf("presentation timeout must be positive")
	}
	return nil
}

// SessionConfig returns the arguments for Session.Initialize
func (c *ClientConfig) SessionConfig() sdk.Config {
	return sdk.Config{
		GameID:      c.GameID,
		Environment: c.Environment,
		AllowExit:   c.AllowExit,
		PlayerName:  c.PlayerName,
		Token:       c.Token,
	}
}

// SessionOptions returns the session options implied by the configuration
func (c *ClientConfig) SessionOptions() []sdk.Option {
	return []sdk.Option{
		sdk.WithDebug(c.Debug),
		sdk.WithPresentationTimeout(c.PresentationTimeout),
	}
}
