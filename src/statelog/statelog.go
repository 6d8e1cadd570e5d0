// Package statelog is the event logger: it ties identity resolution,
// payload compression and storage together, one operation per lifecycle
// event. Every operation swallows internal failures — it logs them and
// returns a zero sentinel — because state logging must never abort the
// host's tool execution.
package statelog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/elee1766/agentstate/src/compressor"
	"github.com/elee1766/agentstate/src/storage"
	"github.com/elee1766/agentstate/src/tracker"
)

// Terminal tool call statuses, re-exported for the hook boundary.
const (
	StatusCompleted = storage.CallCompleted
	StatusFailed    = storage.CallFailed
)

// Config carries the logger's collaborators.
type Config struct {
	DB      *storage.DB
	Tracker *tracker.Context
	Logger  *slog.Logger

	// CompressionThreshold overrides compressor.DefaultThreshold when
	// positive.
	CompressionThreshold int
}

// Logger records session, agent, tool-call and modification events.
type Logger struct {
	db        *storage.DB
	tracker   *tracker.Context
	log       *slog.Logger
	threshold int
}

// New creates an event logger.
func New(cfg Config) *Logger {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	threshold := cfg.CompressionThreshold
	if threshold <= 0 {
		threshold = compressor.DefaultThreshold
	}
	return &Logger{
		db:        cfg.DB,
		tracker:   cfg.Tracker,
		log:       log,
		threshold: threshold,
	}
}

// SessionStart carries the optional fields of LogSessionStart; empty
// fields are filled from the resolved context.
type SessionStart struct {
	SessionID        string
	UserCommand      string
	WorkingDirectory string
	Metadata         map[string]any
}

// LogSessionStart records the start of a session, insert-if-absent, and
// returns the session id. Calling it for an existing session is a no-op.
func (l *Logger) LogSessionStart(ctx context.Context, start SessionStart) string {
	sessionID := start.SessionID
	if sessionID == "" {
		sessionID = l.tracker.ResolveSession()
	}
	workingDirectory := start.WorkingDirectory
	userCommand := start.UserCommand
	if workingDirectory == "" || userCommand == "" {
		info := l.tracker.SessionInfo()
		if workingDirectory == "" {
			workingDirectory = info.WorkingDirectory
		}
		if userCommand == "" {
			userCommand = info.UserCommand
		}
	}
	metadata := start.Metadata
	if metadata == nil {
		metadata = l.tracker.ProcessMetadata()
	}

	var metadataJSON *string
	if len(metadata) > 0 {
		if encoded, err := json.Marshal(metadata); err == nil {
			metadataJSON = ptr(string(encoded))
		}
	}

	session := &storage.Session{
		SessionID:        sessionID,
		UserCommand:      optional(userCommand),
		WorkingDirectory: optional(workingDirectory),
		MetadataJSON:     metadataJSON,
	}
	if err := storage.InsertSession(ctx, l.db.DB(), session); err != nil {
		l.log.Error("failed to log session start", "session_id", sessionID, "error", err)
	}
	return sessionID
}

// LogSessionEnd stamps the session's end time. No-op if the row is absent.
func (l *Logger) LogSessionEnd(ctx context.Context, sessionID string) {
	if sessionID == "" {
		sessionID = l.tracker.ResolveSession()
	}
	if err := storage.EndSession(ctx, l.db.DB(), sessionID, time.Now()); err != nil {
		l.log.Error("failed to log session end", "session_id", sessionID, "error", err)
	}
}

// AgentStart carries the fields of LogAgentStart.
type AgentStart struct {
	AgentID     string
	Name        string
	Type        string
	Prompt      string
	UserCommand string
	SessionID   string
}

// LogAgentStart records an agent starting, insert-if-absent with status
// running, ensuring the owning session row exists first. Returns the
// agent id.
func (l *Logger) LogAgentStart(ctx context.Context, start AgentStart) string {
	sessionID := start.SessionID
	if sessionID == "" {
		sessionID = l.tracker.ResolveSession()
	}
	l.LogSessionStart(ctx, SessionStart{SessionID: sessionID})

	agent := &storage.Agent{
		AgentID:     start.AgentID,
		SessionID:   sessionID,
		AgentName:   start.Name,
		AgentType:   optional(start.Type),
		Prompt:      optional(start.Prompt),
		UserCommand: optional(start.UserCommand),
		Status:      storage.AgentRunning,
	}
	if err := storage.InsertAgent(ctx, l.db.DB(), agent); err != nil {
		l.log.Error("failed to log agent start", "agent_id", start.AgentID, "error", err)
	}

	// Subsequent tool calls in this process attribute to the new agent
	// until LogAgentEnd pops it.
	l.tracker.PushAgent(start.AgentID)
	return start.AgentID
}

// LogAgentEnd records an agent's terminal status, defaulting to completed.
// No-op if the agent row is absent.
func (l *Logger) LogAgentEnd(ctx context.Context, agentID, status string) {
	if status == "" {
		status = storage.AgentCompleted
	}
	if err := storage.CompleteAgent(ctx, l.db.DB(), agentID, status, time.Now()); err != nil {
		l.log.Error("failed to log agent end", "agent_id", agentID, "error", err)
	}
	if l.tracker.ResolveAgent() == agentID {
		l.tracker.PopAgent()
	}
}

// LogToolCallStart records a tool call beginning and returns the row id as
// the correlation handle, or 0 on failure. Callers must retain the id to
// later close the call; a lost id leaves the row stuck in started.
func (l *Logger) LogToolCallStart(ctx context.Context, toolName string, parameters any, agentID, sessionID string) int64 {
	if sessionID == "" {
		sessionID = l.tracker.ResolveSession()
	}
	if agentID == "" {
		agentID = l.tracker.ResolveAgent()
	}
	l.LogSessionStart(ctx, SessionStart{SessionID: sessionID})

	stored, err := compressor.CompressIfLarge(parameters, l.threshold)
	if err != nil {
		l.log.Error("failed to compress tool parameters", "tool", toolName, "error", err)
		return 0
	}

	call := &storage.ToolCall{
		AgentID:   optional(agentID),
		SessionID: sessionID,
		ToolName:  toolName,
		Status:    storage.CallStarted,
	}
	call.ParametersJSON, call.ParametersCompressed, call.ParametersIsCompressed = columns(stored)

	callID, err := storage.InsertToolCall(ctx, l.db.DB(), call)
	if err != nil {
		l.log.Error("failed to log tool call start", "tool", toolName, "error", err)
		return 0
	}
	return callID
}

// ToolCallEnd carries the completion fields of LogToolCallEnd.
type ToolCallEnd struct {
	Result       any
	DurationMs   *int64
	Status       string
	ErrorMessage string
}

// LogToolCallEnd closes the tool call matching the correlation id. A zero
// or unknown id is a logged no-op, never an error.
func (l *Logger) LogToolCallEnd(ctx context.Context, callID int64, end ToolCallEnd) {
	if callID == 0 {
		l.log.Warn("tool call end without correlation id, skipping")
		return
	}

	stored, err := compressor.CompressIfLarge(end.Result, l.threshold)
	if err != nil {
		l.log.Error("failed to compress tool result", "call_id", callID, "error", err)
		return
	}

	completion := &storage.ToolCallCompletion{
		CallID:       callID,
		DurationMs:   end.DurationMs,
		Status:       end.Status,
		ErrorMessage: optional(end.ErrorMessage),
	}
	completion.ResultJSON, completion.ResultCompressed, completion.ResultIsCompressed = columns(stored)

	if err := storage.CompleteToolCall(ctx, l.db.DB(), completion); err != nil {
		l.log.Error("failed to log tool call end", "call_id", callID, "error", err)
	}
}

// FileModification carries the fields of LogModification.
type FileModification struct {
	ToolCallID int64
	Type       string
	FilePath   string
	OldContent string
	NewContent string
	AgentID    string
}

// LogModification records one immutable file modification row. Content
// hashes are computed for whichever of old/new content is present; when
// both are, the full {old,new} pair is compressed and stored as the diff.
func (l *Logger) LogModification(ctx context.Context, mod FileModification) {
	agentID := mod.AgentID
	if agentID == "" {
		agentID = l.tracker.ResolveAgent()
	}

	record := &storage.Modification{
		AgentID:          optional(agentID),
		ModificationType: mod.Type,
		FilePath:         mod.FilePath,
	}
	if mod.ToolCallID != 0 {
		record.ToolCallID = &mod.ToolCallID
	}
	if mod.OldContent != "" {
		record.OldContentHash = ptr(contentHash(mod.OldContent))
	}
	if mod.NewContent != "" {
		record.NewContentHash = ptr(contentHash(mod.NewContent))
	}

	if mod.OldContent != "" && mod.NewContent != "" {
		// Full-content pair, not a computed patch. The query side renders
		// a readable diff from it on demand.
		diff, err := compressor.Compress(map[string]string{
			"old": mod.OldContent,
			"new": mod.NewContent,
		})
		if err != nil {
			l.log.Error("failed to compress modification diff", "file", mod.FilePath, "error", err)
		} else {
			record.DiffCompressed = diff
		}
	}

	if _, err := storage.InsertModification(ctx, l.db.DB(), record); err != nil {
		l.log.Error("failed to log modification", "file", mod.FilePath, "error", err)
	}
}

// CreateSnapshot records one immutable state snapshot and returns its id,
// or 0 on failure.
func (l *Logger) CreateSnapshot(ctx context.Context, snapshotType string, state any, agentID, sessionID string) int64 {
	if sessionID == "" {
		sessionID = l.tracker.ResolveSession()
	}
	if agentID == "" {
		agentID = l.tracker.ResolveAgent()
	}

	stored, err := compressor.CompressIfLarge(state, l.threshold)
	if err != nil {
		l.log.Error("failed to compress snapshot state", "type", snapshotType, "error", err)
		return 0
	}

	snapshot := &storage.StateSnapshot{
		SessionID:    sessionID,
		AgentID:      optional(agentID),
		SnapshotType: snapshotType,
	}
	snapshot.StateJSON, snapshot.StateCompressed, snapshot.IsCompressed = columns(stored)

	snapshotID, err := storage.InsertSnapshot(ctx, l.db.DB(), snapshot)
	if err != nil {
		l.log.Error("failed to create snapshot", "type", snapshotType, "error", err)
		return 0
	}
	return snapshotID
}

// columns flattens a stored payload into the column triple.
func columns(stored compressor.Stored) (*string, []byte, bool) {
	if stored.Compressed {
		return nil, stored.Blob, true
	}
	return optional(stored.Text), nil, false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr(s string) *string {
	return &s
}
