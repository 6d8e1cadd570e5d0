package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	DBPath   string `env:"AGENTSTATE_DB" help:"Database path (defaults to XDG state directory)"`
	LogLevel string `default:"warn" env:"AGENTSTATE_LOG_LEVEL" help:"Log level"`

	// Hook entrypoints wired into the host's tool lifecycle
	Hook HookCmd `cmd:"" help:"Host hook entrypoints (read one event from stdin, write one ack to stdout)"`

	// Query commands (read-only)
	Sessions SessionsCmd `cmd:"" help:"List logged sessions"`
	Agents   AgentsCmd   `cmd:"" help:"List agents for a session"`
	Calls    CallsCmd    `cmd:"" help:"List tool calls for a session or agent"`
	Mods     ModsCmd     `cmd:"" help:"List recent file modifications"`
	Show     ShowCmd     `cmd:"" help:"Show one tool call with decompressed payloads"`
	Export   ExportCmd   `cmd:"" help:"Export one session's full row set as a JSON document"`

	// Database maintenance
	DB DBCmd `cmd:"" name:"db" help:"Database maintenance (init, stats, vacuum)"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("agentstate"),
		kong.Description("State-tracking logger for AI coding-agent sessions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	slog.SetDefault(createCLILogger(cli.LogLevel))

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
