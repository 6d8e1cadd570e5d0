package statelog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/agentstate/src/compressor"
	"github.com/elee1766/agentstate/src/storage"
	"github.com/elee1766/agentstate/src/tracker"
)

func testEnv(vars map[string]string) tracker.Environment {
	return tracker.Environment{
		Getenv:  func(key string) string { return vars[key] },
		Getwd:   func() (string, error) { return "/work", nil },
		Fs:      afero.NewMemMapFs(),
		HomeDir: "/home/dev",
		TempDir: "/tmp",
		Now:     time.Now,
		Pid:     4242,
	}
}

func newTestLogger(t *testing.T, vars map[string]string) (*Logger, *storage.DB) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "agent-state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := New(Config{
		DB:      db,
		Tracker: tracker.New(testEnv(vars)),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return logger, db
}

func TestLogSessionStartIdempotent(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	first := logger.LogSessionStart(ctx, SessionStart{SessionID: "S1"})
	second := logger.LogSessionStart(ctx, SessionStart{SessionID: "S1"})
	assert.Equal(t, "S1", first)
	assert.Equal(t, "S1", second)

	sessions, err := storage.ListSessions(ctx, db.DB(), 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestLogSessionStartDefaultsFromContext(t *testing.T) {
	logger, db := newTestLogger(t, map[string]string{"CLAUDE_SESSION_ID": "env-session"})
	ctx := context.Background()

	sessionID := logger.LogSessionStart(ctx, SessionStart{})
	assert.Equal(t, "env-session", sessionID)

	session, err := storage.GetSession(ctx, db.DB(), "env-session")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotNil(t, session.WorkingDirectory)
	assert.Equal(t, "/work", *session.WorkingDirectory)
	require.NotNil(t, session.MetadataJSON)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal([]byte(*session.MetadataJSON), &metadata))
	assert.EqualValues(t, 4242, metadata["pid"])
}

func TestLogSessionEnd(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	logger.LogSessionStart(ctx, SessionStart{SessionID: "S1"})
	logger.LogSessionEnd(ctx, "S1")

	session, err := storage.GetSession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	assert.NotNil(t, session.EndedAt)
}

func TestLogAgentStartEnsuresSession(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	agentID := logger.LogAgentStart(ctx, AgentStart{
		AgentID:   "A1",
		Name:      "explorer",
		Type:      "Explore",
		SessionID: "S1",
	})
	assert.Equal(t, "A1", agentID)

	session, err := storage.GetSession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	assert.NotNil(t, session, "owning session row must exist")

	agents, err := storage.ListAgents(ctx, db.DB(), "S1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, storage.AgentRunning, agents[0].Status)
}

func TestAgentStackAttribution(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	logger.LogAgentStart(ctx, AgentStart{AgentID: "A1", Name: "explorer", SessionID: "S1"})

	nested := logger.LogToolCallStart(ctx, "Bash", nil, "", "S1")
	require.Greater(t, nested, int64(0))

	logger.LogAgentEnd(ctx, "A1", "")

	main := logger.LogToolCallStart(ctx, "Bash", nil, "", "S1")
	require.Greater(t, main, int64(0))

	nestedCall, err := storage.GetToolCall(ctx, db.DB(), nested)
	require.NoError(t, err)
	require.NotNil(t, nestedCall.AgentID)
	assert.Equal(t, "A1", *nestedCall.AgentID)

	mainCall, err := storage.GetToolCall(ctx, db.DB(), main)
	require.NoError(t, err)
	assert.Nil(t, mainCall.AgentID)
}

func TestLogAgentEndUnknownAgentIsNoop(t *testing.T) {
	logger, _ := newTestLogger(t, nil)
	assert.NotPanics(t, func() {
		logger.LogAgentEnd(context.Background(), "ghost", "")
	})
}

func TestToolCallLifecycle(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	callID := logger.LogToolCallStart(ctx, "Write", map[string]any{"file_path": "/tmp/a.txt"}, "", "S1")
	require.Greater(t, callID, int64(0))

	logger.LogToolCallEnd(ctx, callID, ToolCallEnd{
		Result: map[string]any{"ok": true},
		Status: storage.CallCompleted,
	})

	call, err := storage.GetToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, storage.CallCompleted, call.Status)
	assert.NotNil(t, call.CompletedAt)

	result, err := compressor.Extract(call.ResultJSON, call.ResultCompressed, call.ResultIsCompressed)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)
}

func TestToolCallLargeResultCompressed(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	callID := logger.LogToolCallStart(ctx, "ReadFile", map[string]any{"path": "/big"}, "", "S1")
	require.Greater(t, callID, int64(0))

	large := map[string]any{"content": strings.Repeat("x", 50000)}
	logger.LogToolCallEnd(ctx, callID, ToolCallEnd{Result: large})

	call, err := storage.GetToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	assert.True(t, call.ResultIsCompressed)
	assert.Nil(t, call.ResultJSON)
	require.NotEmpty(t, call.ResultCompressed)

	result, err := compressor.Extract(call.ResultJSON, call.ResultCompressed, call.ResultIsCompressed)
	require.NoError(t, err)
	assert.Equal(t, large, result)
}

func TestLogToolCallEndWithoutIDIsNoop(t *testing.T) {
	logger, _ := newTestLogger(t, nil)
	assert.NotPanics(t, func() {
		logger.LogToolCallEnd(context.Background(), 0, ToolCallEnd{Result: "ignored"})
	})
}

func TestLogToolCallStartResolvesAgent(t *testing.T) {
	logger, db := newTestLogger(t, map[string]string{"CLAUDE_AGENT_ID": "A9"})
	ctx := context.Background()

	callID := logger.LogToolCallStart(ctx, "Bash", map[string]any{"command": "ls"}, "", "S1")
	require.Greater(t, callID, int64(0))

	call, err := storage.GetToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	require.NotNil(t, call.AgentID)
	assert.Equal(t, "A9", *call.AgentID)
}

func TestLogModification(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	callID := logger.LogToolCallStart(ctx, "Edit", map[string]any{"file_path": "/tmp/a.txt"}, "", "S1")
	require.Greater(t, callID, int64(0))

	logger.LogModification(ctx, FileModification{
		ToolCallID: callID,
		Type:       storage.ModFileEdit,
		FilePath:   "/tmp/a.txt",
		OldContent: "old content",
		NewContent: "new content",
	})

	mods, err := storage.ListModificationsByToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	require.Len(t, mods, 1)

	mod := mods[0]
	require.NotNil(t, mod.OldContentHash)
	require.NotNil(t, mod.NewContentHash)
	assert.NotEqual(t, *mod.OldContentHash, *mod.NewContentHash)
	assert.Len(t, *mod.OldContentHash, 64)

	// The diff blob holds the compressed full {old,new} pair.
	require.NotEmpty(t, mod.DiffCompressed)
	text, err := compressor.Decompress(mod.DiffCompressed)
	require.NoError(t, err)

	var pair map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &pair))
	assert.Equal(t, "old content", pair["old"])
	assert.Equal(t, "new content", pair["new"])
}

func TestLogModificationWriteOnlyHasNoDiff(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	callID := logger.LogToolCallStart(ctx, "Write", map[string]any{"file_path": "/tmp/new.txt"}, "", "S1")
	logger.LogModification(ctx, FileModification{
		ToolCallID: callID,
		Type:       storage.ModFileWrite,
		FilePath:   "/tmp/new.txt",
		NewContent: "fresh content",
	})

	mods, err := storage.ListModificationsByToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Nil(t, mods[0].OldContentHash)
	assert.NotNil(t, mods[0].NewContentHash)
	assert.Empty(t, mods[0].DiffCompressed)
}

func TestCreateSnapshot(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	id := logger.CreateSnapshot(ctx, "agent_start", map[string]any{"phase": "explore"}, "A1", "S1")
	require.Greater(t, id, int64(0))

	snapshots, err := storage.ListSnapshotsBySession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	state, err := compressor.Extract(snapshots[0].StateJSON, snapshots[0].StateCompressed, snapshots[0].IsCompressed)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"phase": "explore"}, state)
}

func TestStorageFailuresAreSwallowed(t *testing.T) {
	logger, db := newTestLogger(t, nil)
	ctx := context.Background()

	// Closing the database makes every write fail; the logger must
	// degrade to sentinels, never panic or propagate.
	require.NoError(t, db.Close())

	assert.NotPanics(t, func() {
		sessionID := logger.LogSessionStart(ctx, SessionStart{SessionID: "S1"})
		assert.Equal(t, "S1", sessionID)

		callID := logger.LogToolCallStart(ctx, "Bash", nil, "", "S1")
		assert.Zero(t, callID)

		logger.LogSessionEnd(ctx, "S1")
		logger.LogAgentEnd(ctx, "A1", "")
		logger.LogModification(ctx, FileModification{Type: storage.ModFileWrite, FilePath: "/x"})
		assert.Zero(t, logger.CreateSnapshot(ctx, "t", nil, "", "S1"))
	})
}
