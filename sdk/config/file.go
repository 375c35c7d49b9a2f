package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/tourneykit/sdk"
)

// fileConfig mirrors the attributes accepted in a client HCL file
type fileConfig struct {
	GameID              string `hcl:"game_id,optional"`
	Environment         string `hcl:"environment,optional"`
	Server              string `hcl:"server,optional"`
	Player              string `hcl:"player,optional"`
	Token               string `hcl:"token,optional"`
	AllowExit           *bool  `hcl:"allow_exit,optional"`
	Debug               *bool  `hcl:"debug,optional"`
	PresentationTimeout string `hcl:"presentation_timeout,optional"`
}

// LoadClientConfig reads an HCL client file, then applies environment
// variable overrides. A missing file is not an error.
//
//	game_id     = "dice"
//	environment = "sandbox"
//	server      = "ws://localhost:8080/ws"
//	player      = "alice"
//	allow_exit  = true
func LoadClientConfig(filename string) (*ClientConfig, error) {
	return Load(filename, Default())
}

// Load is LoadClientConfig starting from base instead of Default. base is
// modified in place.
func Load(filename string, base *ClientConfig) (*ClientConfig, error) {
	cfg := base

	if _, err := os.Stat(filename); err == nil {
		if err := cfg.decodeFile(filename); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) decodeFile(filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if fc.GameID != "" {
		c.GameID = fc.GameID
	}
	if fc.Environment != "" {
		env, err := sdk.ParseEnvironment(fc.Environment)
		if err != nil {
			return err
		}
		c.Environment = env
	}
	if fc.Server != "" {
		c.ServerURL = fc.Server
	}
	if fc.Player != "" {
		c.PlayerName = fc.Player
	}
	if fc.Token != "" {
		c.Token = fc.Token
	}
	if fc.AllowExit != nil {
		c.AllowExit = *fc.AllowExit
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	if fc.PresentationTimeout != "" {
		d, err := time.ParseDuration(fc.PresentationTimeout)
		if err != nil {
			return fmt.Errorf("invalid presentation_timeout: %w", err)
		}
		c.PresentationTimeout = d
	}
	return nil
}
