package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/lipgloss"
	"github.com/elee1766/agentstate/src/compressor"
	"github.com/elee1766/agentstate/src/storage"
)

var (
	styleCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// renderStatus colors a status value for terminal output
func renderStatus(status string) string {
	switch status {
	case storage.CallCompleted:
		return styleCompleted.Render(status)
	case storage.CallFailed:
		return styleFailed.Render(status)
	case storage.CallStarted, storage.AgentRunning:
		return styleRunning.Render(status)
	default:
		return status
	}
}

const timeLayout = "2006-01-02 15:04:05"

// SessionsCmd lists logged sessions
type SessionsCmd struct {
	Limit int `help:"Maximum number of sessions to show" default:"20"`
}

// Run executes the sessions command
func (c *SessionsCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := storage.ListSessions(context.Background(), db.DB(), c.Limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION ID\tSTARTED AT\tENDED AT\tWORKING DIR")
	for _, s := range sessions {
		ended := styleRunning.Render("running")
		if s.EndedAt != nil {
			ended = s.EndedAt.Format(timeLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.SessionID,
			s.StartedAt.Format(timeLayout),
			ended,
			strOrDash(s.WorkingDirectory),
		)
	}
	return w.Flush()
}

// AgentsCmd lists agents for a session
type AgentsCmd struct {
	Session string `arg:"" help:"Session ID, or 'current' for the resolved session"`
}

// Run executes the agents command
func (c *AgentsCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	session := resolveSessionArg(c.Session)
	agents, err := storage.ListAgents(context.Background(), db.DB(), session)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	if len(agents) == 0 {
		fmt.Printf("No agents found for session %s\n", session)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT ID\tNAME\tTYPE\tSTATUS\tCREATED AT")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.AgentID,
			a.AgentName,
			strOrDash(a.AgentType),
			renderStatus(a.Status),
			a.CreatedAt.Format(timeLayout),
		)
	}
	return w.Flush()
}

// CallsCmd lists tool calls for a session or agent
type CallsCmd struct {
	Session string `help:"Session ID, or 'current' for the resolved session" xor:"scope" required:""`
	Agent   string `help:"Agent ID" xor:"scope" required:""`
}

// Run executes the calls command
func (c *CallsCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	var calls []storage.ToolCall
	if c.Agent != "" {
		calls, err = storage.ListToolCallsByAgent(context.Background(), db.DB(), c.Agent)
	} else {
		calls, err = storage.ListToolCallsBySession(context.Background(), db.DB(), resolveSessionArg(c.Session))
	}
	if err != nil {
		return fmt.Errorf("failed to list tool calls: %w", err)
	}
	if len(calls) == 0 {
		fmt.Println("No tool calls found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOOL\tAGENT\tSTATUS\tDURATION\tCALLED AT")
	for _, call := range calls {
		agent := "main"
		if call.AgentID != nil {
			agent = *call.AgentID
		}
		duration := "-"
		if call.DurationMs != nil {
			duration = fmt.Sprintf("%dms", *call.DurationMs)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			call.ID,
			call.ToolName,
			agent,
			renderStatus(call.Status),
			duration,
			call.CalledAt.Format(timeLayout),
		)
	}
	return w.Flush()
}

// ModsCmd lists recent file modifications
type ModsCmd struct {
	FilePath string `help:"Filter by file path substring"`
	Agent    string `help:"Filter by agent ID"`
	Limit    int    `help:"Maximum number of modifications to show" default:"50"`
}

// Run executes the mods command
func (c *ModsCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	var mods []storage.Modification
	switch {
	case c.FilePath != "":
		mods, err = storage.ListModificationsByFile(context.Background(), db.DB(), c.FilePath, c.Limit)
	case c.Agent != "":
		mods, err = storage.ListModificationsByAgent(context.Background(), db.DB(), c.Agent, c.Limit)
	default:
		mods, err = storage.ListRecentModifications(context.Background(), db.DB(), c.Limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list modifications: %w", err)
	}
	if len(mods) == 0 {
		fmt.Println("No modifications found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tFILE\tAGENT\tCALL\tCREATED AT")
	for _, mod := range mods {
		agent := "main"
		if mod.AgentID != nil {
			agent = *mod.AgentID
		}
		call := "-"
		if mod.ToolCallID != nil {
			call = fmt.Sprintf("%d", *mod.ToolCallID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			mod.ID,
			mod.ModificationType,
			mod.FilePath,
			agent,
			call,
			mod.CreatedAt.Format(timeLayout),
		)
	}
	return w.Flush()
}

// ShowCmd shows one tool call with decompressed payloads
type ShowCmd struct {
	CallID int64 `arg:"" help:"Tool call ID"`
	Diff   bool  `help:"Render diffs for the call's modifications"`
}

// Run executes the show command
func (c *ShowCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	call, err := storage.GetToolCall(context.Background(), db.DB(), c.CallID)
	if err != nil {
		return fmt.Errorf("failed to fetch tool call: %w", err)
	}
	if call == nil {
		return fmt.Errorf("tool call %d not found", c.CallID)
	}

	fmt.Printf("Tool call %d: %s [%s]\n", call.ID, call.ToolName, renderStatus(call.Status))
	fmt.Printf("Session: %s\n", call.SessionID)
	if call.AgentID != nil {
		fmt.Printf("Agent: %s\n", *call.AgentID)
	}
	if call.ErrorMessage != nil {
		fmt.Printf("Error: %s\n", styleFailed.Render(*call.ErrorMessage))
	}

	parameters, err := compressor.Extract(call.ParametersJSON, call.ParametersCompressed, call.ParametersIsCompressed)
	if err != nil {
		return decodeFailure("parameters", err)
	}
	printPayload("Parameters", parameters)

	result, err := compressor.Extract(call.ResultJSON, call.ResultCompressed, call.ResultIsCompressed)
	if err != nil {
		return decodeFailure("result", err)
	}
	printPayload("Result", result)

	mods, err := storage.ListModificationsByToolCall(context.Background(), db.DB(), call.ID)
	if err != nil {
		return fmt.Errorf("failed to list modifications: %w", err)
	}
	for _, mod := range mods {
		fmt.Printf("\nModification %d: %s %s\n", mod.ID, mod.ModificationType, mod.FilePath)
		if c.Diff && len(mod.DiffCompressed) > 0 {
			rendered, err := renderDiff(mod)
			if err != nil {
				return decodeFailure("diff", err)
			}
			fmt.Print(rendered)
		}
	}

	return nil
}

// renderDiff decompresses the stored {old,new} content pair and renders a
// unified diff from it. The diff is computed at display time; the store
// only ever holds the full pair.
func renderDiff(mod storage.Modification) (string, error) {
	text, err := compressor.Decompress(mod.DiffCompressed)
	if err != nil {
		return "", err
	}

	var pair struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := json.Unmarshal([]byte(text), &pair); err != nil {
		// Not a {old,new} pair; show the raw payload.
		return text + "\n", nil
	}

	return udiff.Unified(mod.FilePath+" (old)", mod.FilePath+" (new)", pair.Old, pair.New), nil
}

func printPayload(label string, payload any) {
	if payload == nil {
		return
	}
	fmt.Printf("\n%s:\n", label)
	if text, ok := payload.(string); ok {
		fmt.Println(text)
		return
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", payload)
		return
	}
	fmt.Println(string(encoded))
}

// decodeFailure wraps a corrupted-blob error for the user. Unlike the
// hook path, the query side surfaces these directly.
func decodeFailure(field string, err error) error {
	var decodeErr *compressor.DecodeError
	if errors.As(err, &decodeErr) {
		return fmt.Errorf("stored %s appears corrupted: %w", field, err)
	}
	return err
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
