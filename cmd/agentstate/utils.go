package main

import (
	"github.com/elee1766/agentstate/src/config"
	"github.com/elee1766/agentstate/src/storage"
	"github.com/elee1766/agentstate/src/tracker"
)

// resolveConfig loads the environment configuration and applies CLI flag
// overrides on top
func resolveConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if cli.DBPath != "" {
		cfg.DBPath = cli.DBPath
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSessionArg maps the "current" alias to the session id resolved
// from the live environment; any other value passes through as a literal id
func resolveSessionArg(session string) string {
	if session == "current" {
		return tracker.New(tracker.DefaultEnvironment()).ResolveSession()
	}
	return session
}

// openDB opens the configured database for a query command
func openDB(cli *CLI) (*storage.DB, error) {
	cfg, err := resolveConfig(cli)
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg.DBPath)
}
