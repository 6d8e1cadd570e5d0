package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "agent-state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestOpenProvisionsSchema(t *testing.T) {
	db := openTestDB(t)

	// All entity tables must exist after first open.
	for _, table := range []string{"sessions", "agents", "tool_calls", "modifications", "state_snapshots"} {
		var name string
		row := db.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, row.Scan(&name), "table %s should exist", table)
	}
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "agent-state.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-state.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an already-provisioned file must not fail.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
}

func TestInsertSessionIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := &Session{SessionID: "S1", WorkingDirectory: strPtr("/work")}
	require.NoError(t, InsertSession(ctx, db.DB(), first))

	// Second insert with the same id is ignored, not an error.
	second := &Session{SessionID: "S1", WorkingDirectory: strPtr("/elsewhere")}
	require.NoError(t, InsertSession(ctx, db.DB(), second))

	sessions, err := ListSessions(ctx, db.DB(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "S1", sessions[0].SessionID)
	require.NotNil(t, sessions[0].WorkingDirectory)
	assert.Equal(t, "/work", *sessions[0].WorkingDirectory)
}

func TestEndSession(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))

	session, err := GetSession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Nil(t, session.EndedAt)

	require.NoError(t, EndSession(ctx, db.DB(), "S1", session.StartedAt.Add(1)))

	session, err = GetSession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	assert.NotNil(t, session.EndedAt)
}

func TestEndSessionMissingRowIsNoop(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, EndSession(context.Background(), db.DB(), "ghost", time.Now()))
}

func TestAgentLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))
	agent := &Agent{AgentID: "A1", SessionID: "S1", AgentName: "explorer"}
	require.NoError(t, InsertAgent(ctx, db.DB(), agent))
	assert.Equal(t, AgentRunning, agent.Status)

	// Duplicate start is ignored.
	require.NoError(t, InsertAgent(ctx, db.DB(), &Agent{AgentID: "A1", SessionID: "S1", AgentName: "other"}))

	require.NoError(t, CompleteAgent(ctx, db.DB(), "A1", AgentCompleted, time.Now()))

	agents, err := ListAgents(ctx, db.DB(), "S1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "explorer", agents[0].AgentName)
	assert.Equal(t, AgentCompleted, agents[0].Status)
	assert.NotNil(t, agents[0].CompletedAt)
}

func TestToolCallLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))

	callID, err := InsertToolCall(ctx, db.DB(), &ToolCall{
		SessionID:      "S1",
		ToolName:       "Write",
		ParametersJSON: strPtr(`{"file_path":"/tmp/a.txt"}`),
	})
	require.NoError(t, err)
	assert.Greater(t, callID, int64(0))

	call, err := GetToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, CallStarted, call.Status)
	assert.Nil(t, call.CompletedAt)

	duration := int64(42)
	require.NoError(t, CompleteToolCall(ctx, db.DB(), &ToolCallCompletion{
		CallID:     callID,
		ResultJSON: strPtr(`{"ok":true}`),
		DurationMs: &duration,
		Status:     CallCompleted,
	}))

	call, err = GetToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	assert.Equal(t, CallCompleted, call.Status)
	assert.NotNil(t, call.CompletedAt)
	require.NotNil(t, call.DurationMs)
	assert.Equal(t, int64(42), *call.DurationMs)
	require.NotNil(t, call.ResultJSON)
	assert.JSONEq(t, `{"ok":true}`, *call.ResultJSON)
}

func TestCompleteToolCallUnknownIDIsNoop(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, CompleteToolCall(context.Background(), db.DB(), &ToolCallCompletion{
		CallID: 9999,
		Status: CallCompleted,
	}))
}

func TestGetToolCallNotFound(t *testing.T) {
	db := openTestDB(t)
	call, err := GetToolCall(context.Background(), db.DB(), 12345)
	require.NoError(t, err)
	assert.Nil(t, call)
}

func TestModificationsBySession(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))
	callID, err := InsertToolCall(ctx, db.DB(), &ToolCall{SessionID: "S1", ToolName: "Edit"})
	require.NoError(t, err)

	_, err = InsertModification(ctx, db.DB(), &Modification{
		ToolCallID:       &callID,
		ModificationType: ModFileEdit,
		FilePath:         "/tmp/a.txt",
		OldContentHash:   strPtr("aaaa"),
		NewContentHash:   strPtr("bbbb"),
	})
	require.NoError(t, err)

	byCall, err := ListModificationsByToolCall(ctx, db.DB(), callID)
	require.NoError(t, err)
	require.Len(t, byCall, 1)
	assert.Equal(t, "/tmp/a.txt", byCall[0].FilePath)

	bySession, err := ListModificationsBySession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	assert.Len(t, bySession, 1)
}

func TestModificationFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))
	callID, err := InsertToolCall(ctx, db.DB(), &ToolCall{SessionID: "S1", ToolName: "Write"})
	require.NoError(t, err)

	rows := []*Modification{
		{ToolCallID: &callID, ModificationType: ModFileWrite, FilePath: "/src/storage/queries.go"},
		{ToolCallID: &callID, AgentID: strPtr("A1"), ModificationType: ModFileEdit, FilePath: "/src/storage/schema.go"},
		{ToolCallID: &callID, AgentID: strPtr("A2"), ModificationType: ModFileWrite, FilePath: "/docs/readme.md"},
	}
	for _, row := range rows {
		_, err := InsertModification(ctx, db.DB(), row)
		require.NoError(t, err)
	}

	byFile, err := ListModificationsByFile(ctx, db.DB(), "storage", 50)
	require.NoError(t, err)
	require.Len(t, byFile, 2)
	for _, mod := range byFile {
		assert.Contains(t, mod.FilePath, "storage")
	}

	byAgent, err := ListModificationsByAgent(ctx, db.DB(), "A2", 50)
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, "/docs/readme.md", byAgent[0].FilePath)

	recent, err := ListRecentModifications(ctx, db.DB(), 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSnapshots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))

	id, err := InsertSnapshot(ctx, db.DB(), &StateSnapshot{
		SessionID:    "S1",
		SnapshotType: "agent_start",
		StateJSON:    strPtr(`{"phase":"explore"}`),
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	snapshots, err := ListSnapshotsBySession(ctx, db.DB(), "S1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "agent_start", snapshots[0].SnapshotType)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InsertSession(ctx, db.DB(), &Session{SessionID: "S1"}))
	_, err := InsertToolCall(ctx, db.DB(), &ToolCall{SessionID: "S1", ToolName: "Bash"})
	require.NoError(t, err)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Sessions)
	assert.Equal(t, int64(1), stats.ToolCalls)
	assert.Equal(t, int64(0), stats.Agents)
	assert.Greater(t, stats.DatabaseSizeBytes, int64(0))
}

func TestVacuum(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Vacuum(context.Background()))
}
