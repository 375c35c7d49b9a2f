package main

import (
	"github.com/charmbracelet/log"
	"github.com/lox/tourneykit/internal/server"
	"github.com/lox/tourneykit/sdk"
	"github.com/lox/tourneykit/sdk/local"
	"github.com/lox/tourneykit/sdk/wsclient"
)

// localEngine offers the default server tournaments in process
func localEngine() (*local.Engine, error) {
	defs, err := server.DefaultServerConfig().Definitions()
	if err != nil {
		return nil, err
	}
	return local.NewEngine(defs...)
}

// newBackend returns a local backend when engine is set, otherwise a
// websocket client for serverURL.
func newBackend(engine *local.Engine, serverURL string, logger *log.Logger) sdk.Backend {
	if engine != nil {
		return local.New(engine)
	}
	return wsclient.New(
		wsclient.WithServerURL(serverURL),
		wsclient.WithLogger(logger),
	)
}
