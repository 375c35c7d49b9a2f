package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/tourneykit/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{EnvGameID, EnvEnvironment, EnvServer, EnvPlayer, EnvToken, EnvAllowExit, EnvDebug}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, env[k])
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *ClientConfig
		wantErr bool
	}{
		{
			name: "all variables set",
			env: map[string]string{
				EnvGameID:      "dice",
				EnvEnvironment: "production",
				EnvServer:      "wss://tourneys.example.com/ws",
				EnvPlayer:      "alice",
				EnvToken:       "secret",
				EnvAllowExit:   "true",
				EnvDebug:       "1",
			},
			want: &ClientConfig{
				GameID:              "dice",
				Environment:         sdk.EnvironmentProduction,
				ServerURL:           "wss://tourneys.example.com/ws",
				PlayerName:          "alice",
				Token:               "secret",
				AllowExit:           true,
				Debug:               true,
				PresentationTimeout: sdk.DefaultPresentationTimeout,
			},
		},
		{
			name: "only required variables",
			env:  map[string]string{EnvGameID: "dice"},
			want: &ClientConfig{
				GameID:              "dice",
				Environment:         sdk.EnvironmentSandbox,
				PresentationTimeout: sdk.DefaultPresentationTimeout,
			},
		},
		{
			name:    "missing game id",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "production without server",
			env:     map[string]string{EnvGameID: "dice", EnvEnvironment: "production"},
			wantErr: true,
		},
		{
			name:    "invalid environment",
			env:     map[string]string{EnvGameID: "dice", EnvEnvironment: "staging"},
			wantErr: true,
		},
		{
			name:    "invalid allow exit",
			env:     map[string]string{EnvGameID: "dice", EnvAllowExit: "sometimes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			got, err := FromEnv()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadClientConfig(t *testing.T) {
	setEnv(t, map[string]string{EnvPlayer: "from-env"})

	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
game_id              = "dice"
server               = "ws://localhost:9000/ws"
player               = "from-file"
token                = "file-token"
allow_exit           = true
presentation_timeout = "30s"
`), 0o644))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dice", cfg.GameID)
	assert.Equal(t, sdk.EnvironmentSandbox, cfg.Environment)
	assert.Equal(t, "ws://localhost:9000/ws", cfg.ServerURL)
	assert.Equal(t, "from-env", cfg.PlayerName, "environment overrides the file")
	assert.Equal(t, "file-token", cfg.Token)
	assert.True(t, cfg.AllowExit)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.PresentationTimeout)

	sc := cfg.SessionConfig()
	assert.Equal(t, sdk.Config{GameID: "dice", Environment: sdk.EnvironmentSandbox, AllowExit: true, PlayerName: "from-env", Token: "file-token"}, sc)
	assert.Len(t, cfg.SessionOptions(), 2)
}

func TestLoadClientConfigErrors(t *testing.T) {
	setEnv(t, nil)
	dir := t.TempDir()

	_, err := LoadClientConfig(filepath.Join(dir, "missing.hcl"))
	require.ErrorContains(t, err, "game id is required")

	tests := map[string]string{
		"syntax":   `game_id = `,
		"unknown":  `colour = "red"`,
		"timeout":  "game_id = \"dice\"\npresentation_timeout = \"later\"",
		"env name": "game_id = \"dice\"\nenvironment = \"qa\"",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".hcl")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadClientConfig(path)
			require.Error(t, err)
		})
	}
}

func TestLoadWithBase(t *testing.T) {
	setEnv(t, nil)

	base := Default()
	base.GameID = "dice"
	base.AllowExit = true

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.hcl"), base)
	require.NoError(t, err)
	assert.Equal(t, "dice", cfg.GameID)
	assert.True(t, cfg.AllowExit)

	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte("allow_exit = false\ngame_id = \"cards\"\n"), 0o644))

	cfg, err = Load(path, base)
	require.NoError(t, err)
	assert.Equal(t, "cards", cfg.GameID)
	assert.False(t, cfg.AllowExit)
}
