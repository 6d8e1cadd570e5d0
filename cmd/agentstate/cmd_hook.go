package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/elee1766/agentstate/src/hook"
	"github.com/elee1766/agentstate/src/statelog"
	"github.com/elee1766/agentstate/src/storage"
	"github.com/elee1766/agentstate/src/tracker"
)

// HookCmd groups the host hook entrypoints
type HookCmd struct {
	Pre  HookPreCmd  `cmd:"" help:"Pre-tool-execution hook"`
	Post HookPostCmd `cmd:"" help:"Post-tool-execution hook"`
}

// HookPreCmd logs a tool call starting
type HookPreCmd struct{}

// Run executes the pre hook. It always succeeds from the host's
// perspective: the returned error is always nil so the process exits 0.
func (c *HookPreCmd) Run(ctx *kong.Context, cli *CLI) error {
	runHook(cli, hook.RunPre)
	return nil
}

// HookPostCmd logs a tool call completing
type HookPostCmd struct{}

// Run executes the post hook. Always exits 0.
func (c *HookPostCmd) Run(ctx *kong.Context, cli *CLI) error {
	runHook(cli, hook.RunPost)
	return nil
}

// runHook wires up the event logger and hands stdin/stdout to the
// adapter. Setup failures are acknowledged with an advisory message; the
// host is never blocked.
func runHook(cli *CLI, adapter func(context.Context, io.Reader, io.Writer, *statelog.Logger)) {
	log := createHookLogger(cli.LogLevel)

	cfg, err := resolveConfig(cli)
	if err != nil {
		log.Error("hook configuration failed", "error", err)
		ackFailure(fmt.Sprintf("agent logger configuration error: %v", err))
		return
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Error("hook database open failed", "path", cfg.DBPath, "error", err)
		ackFailure(fmt.Sprintf("agent logger database error: %v", err))
		return
	}
	defer db.Close()

	logger := statelog.New(statelog.Config{
		DB:                   db,
		Tracker:              tracker.New(tracker.DefaultEnvironment()),
		Logger:               log,
		CompressionThreshold: cfg.CompressionThreshold,
	})

	adapter(context.Background(), os.Stdin, os.Stdout, logger)
}

// ackFailure emits the advisory acknowledgement used when the adapter
// never got a chance to run.
func ackFailure(message string) {
	_ = json.NewEncoder(os.Stdout).Encode(map[string]string{"systemMessage": message})
}
