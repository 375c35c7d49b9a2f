package server

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/tourneykit/internal/tournament"
	"github.com/lox/tourneykit/sdk"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server      ServerSettings     `hcl:"server,block"`
	Tournaments []TournamentConfig `hcl:"tournament,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address     string `hcl:"address,optional"`
	Port        int    `hcl:"port,optional"`
	LogLevel    string `hcl:"log_level,optional"`
	DataDir     string `hcl:"data_dir,optional"`
	GameID      string `hcl:"game_id,optional"`
	Environment string `hcl:"environment,optional"`
	// AuthURL enables token verification against an external endpoint
	AuthURL      string `hcl:"auth_url,optional"`
	AuthSecret   string `hcl:"auth_secret,optional"`
	AuthFailOpen bool   `hcl:"auth_fail_open,optional"`
	// AuthJWTSecret verifies HS256 player tokens locally instead
	AuthJWTSecret string `hcl:"auth_jwt_secret,optional"`
}

// TournamentConfig defines one tournament offered in the lobby
type TournamentConfig struct {
	ID          string    `hcl:"id,label"`
	Name        string    `hcl:"name,optional"`
	Description string    `hcl:"description,optional"`
	Mode        string    `hcl:"mode,optional"`
	Players     int       `hcl:"players,optional"`
	TurnTimeout string    `hcl:"turn_timeout,optional"`
	Parameters  cty.Value `hcl:"parameters,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:     "localhost",
			Port:        8080,
			LogLevel:    "info",
			Environment: sdk.EnvironmentSandbox.String(),
		},
		Tournaments: []TournamentConfig{
			{
				ID:      "practice",
				Name:    "Practice",
				Mode:    string(sdk.ModeStandard),
				Players: 2,
			},
			{
				ID:          "duel",
				Name:        "Turn-based duel",
				Mode:        string(sdk.ModeTurnBased),
				Players:     2,
				TurnTimeout: "24h",
			},
		},
	}
}

// LoadServerConfig loads server configuration from an HCL file. A missing
// file yields the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = sdk.EnvironmentSandbox.String()
	}

	for i := range c.Tournaments {
		t := &c.Tournaments[i]
		if t.Mode == "" {
			t.Mode = string(sdk.ModeStandard)
		}
		if t.Players == 0 {
			t.Players = 2
		}
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := sdk.ParseEnvironment(c.Server.Environment); err != nil {
		return err
	}
	if c.Server.AuthURL != "" && c.Server.AuthJWTSecret != "" {
		return fmt.Errorf("auth_url and auth_jwt_secret are mutually exclusive")
	}
	if len(c.Tournaments) == 0 {
		return fmt.Errorf("at least one tournament must be configured")
	}

	defs, err := c.Definitions()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Definitions converts the tournament blocks for the engine.
func (c *ServerConfig) Definitions() ([]tournament.Definition, error) {
	defs := make([]tournament.Definition, 0, len(c.Tournaments))
	for _, t := range c.Tournaments {
		def := tournament.Definition{
			ID:              t.ID,
			Name:            t.Name,
			Description:     t.Description,
			Mode:            sdk.MatchMode(t.Mode),
			PlayersPerMatch: t.Players,
		}

		if t.TurnTimeout != "" {
			d, err := time.ParseDuration(t.TurnTimeout)
			if err != nil {
				return nil, fmt.Errorf("tournament %s: invalid turn_timeout: %w", t.ID, err)
			}
			def.TurnTimeout = d
		}

		params, err := gameParameters(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tournament %s: %w", t.ID, err)
		}
		def.GameParameters = params

		defs = append(defs, def)
	}
	return defs, nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// gameParameters converts an HCL object such as { rounds = 3 } into the
// JSON-shaped values clients receive.
func gameParameters(v cty.Value) (sdk.GameParameters, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("parameters must be an object, got %s", v.Type().FriendlyName())
	}

	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	var params sdk.GameParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return params, nil
}
