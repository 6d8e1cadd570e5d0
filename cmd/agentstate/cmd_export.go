package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/elee1766/agentstate/src/compressor"
	"github.com/elee1766/agentstate/src/storage"
	"github.com/google/uuid"
)

// ExportCmd exports one session's full row set as a JSON document
type ExportCmd struct {
	Session string `arg:"" help:"Session ID, or 'current' for the resolved session"`
	Output  string `short:"o" help:"Write to file instead of stdout"`
}

// exportDocument is the structured export: the session row plus every row
// that references it, with compressed payloads decoded back to their
// native form.
type exportDocument struct {
	ExportID   string             `json:"export_id"`
	ExportedAt time.Time          `json:"exported_at"`
	Session    *storage.Session   `json:"session"`
	Agents     []storage.Agent    `json:"agents"`
	ToolCalls  []exportedToolCall `json:"tool_calls"`
	Mods       []exportedMod      `json:"modifications"`
	Snapshots  []exportedSnapshot `json:"state_snapshots"`
}

type exportedToolCall struct {
	storage.ToolCall
	Parameters any `json:"parameters,omitempty"`
	Result     any `json:"result,omitempty"`
}

type exportedMod struct {
	storage.Modification
	Diff any `json:"diff,omitempty"`
}

type exportedSnapshot struct {
	storage.StateSnapshot
	State any `json:"state,omitempty"`
}

// Run executes the export command
func (c *ExportCmd) Run(kctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	sessionID := resolveSessionArg(c.Session)

	session, err := storage.GetSession(ctx, db.DB(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}

	agents, err := storage.ListAgents(ctx, db.DB(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	calls, err := storage.ListToolCallsBySession(ctx, db.DB(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to list tool calls: %w", err)
	}
	mods, err := storage.ListModificationsBySession(ctx, db.DB(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to list modifications: %w", err)
	}
	snapshots, err := storage.ListSnapshotsBySession(ctx, db.DB(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	doc := exportDocument{
		ExportID:   uuid.New().String(),
		ExportedAt: time.Now(),
		Session:    session,
		Agents:     agents,
	}

	for _, call := range calls {
		exported := exportedToolCall{ToolCall: call}
		if exported.Parameters, err = compressor.Extract(call.ParametersJSON, call.ParametersCompressed, call.ParametersIsCompressed); err != nil {
			return decodeFailure(fmt.Sprintf("parameters of call %d", call.ID), err)
		}
		if exported.Result, err = compressor.Extract(call.ResultJSON, call.ResultCompressed, call.ResultIsCompressed); err != nil {
			return decodeFailure(fmt.Sprintf("result of call %d", call.ID), err)
		}
		doc.ToolCalls = append(doc.ToolCalls, exported)
	}

	for _, mod := range mods {
		exported := exportedMod{Modification: mod}
		if len(mod.DiffCompressed) > 0 {
			text, err := compressor.Decompress(mod.DiffCompressed)
			if err != nil {
				return decodeFailure(fmt.Sprintf("diff of modification %d", mod.ID), err)
			}
			var pair any
			if json.Unmarshal([]byte(text), &pair) == nil {
				exported.Diff = pair
			} else {
				exported.Diff = text
			}
		}
		doc.Mods = append(doc.Mods, exported)
	}

	for _, snapshot := range snapshots {
		exported := exportedSnapshot{StateSnapshot: snapshot}
		if exported.State, err = compressor.Extract(snapshot.StateJSON, snapshot.StateCompressed, snapshot.IsCompressed); err != nil {
			return decodeFailure(fmt.Sprintf("state of snapshot %d", snapshot.ID), err)
		}
		doc.Snapshots = append(doc.Snapshots, exported)
	}

	out := os.Stdout
	if c.Output != "" {
		file, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}
