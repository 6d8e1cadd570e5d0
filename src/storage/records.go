package storage

import (
	"context"
	"time"
)

// InsertSession inserts a session row if one with the same session_id does
// not already exist. Safe to call from concurrent processes: INSERT OR
// IGNORE makes first-use creation idempotent without locking.
func InsertSession(ctx context.Context, db Execer, session *Session) error {
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}

	query := `INSERT OR IGNORE INTO sessions (session_id, user_command, working_directory, metadata_json, started_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		session.SessionID,
		session.UserCommand,
		session.WorkingDirectory,
		session.MetadataJSON,
		session.StartedAt,
	)
	return err
}

// EndSession stamps a session's end time. Updating a missing row is a
// no-op at the SQL level, which is the behavior callers rely on.
func EndSession(ctx context.Context, db Execer, sessionID string, endedAt time.Time) error {
	query := `UPDATE sessions SET ended_at = ? WHERE session_id = ?`
	_, err := db.ExecContext(ctx, query, endedAt, sessionID)
	return err
}

// InsertAgent inserts an agent row if absent, with status running.
func InsertAgent(ctx context.Context, db Execer, agent *Agent) error {
	if agent.Status == "" {
		agent.Status = AgentRunning
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}

	query := `INSERT OR IGNORE INTO agents (agent_id, session_id, agent_name, agent_type, prompt, user_command, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		agent.AgentID,
		agent.SessionID,
		agent.AgentName,
		agent.AgentType,
		agent.Prompt,
		agent.UserCommand,
		agent.Status,
		agent.CreatedAt,
	)
	return err
}

// CompleteAgent records an agent's terminal status and completion time.
func CompleteAgent(ctx context.Context, db Execer, agentID, status string, completedAt time.Time) error {
	query := `UPDATE agents SET completed_at = ?, status = ? WHERE agent_id = ?`
	_, err := db.ExecContext(ctx, query, completedAt, status, agentID)
	return err
}

// InsertToolCall inserts a new tool call row with status started and
// returns the auto-assigned row id, the correlation handle the caller must
// retain to later close the call.
func InsertToolCall(ctx context.Context, db Execer, call *ToolCall) (int64, error) {
	if call.Status == "" {
		call.Status = CallStarted
	}
	if call.CalledAt.IsZero() {
		call.CalledAt = time.Now()
	}

	query := `INSERT INTO tool_calls (agent_id, session_id, tool_name, parameters_json, parameters_compressed, parameters_is_compressed, status, called_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		call.AgentID,
		call.SessionID,
		call.ToolName,
		call.ParametersJSON,
		call.ParametersCompressed,
		call.ParametersIsCompressed,
		call.Status,
		call.CalledAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ToolCallCompletion carries the mutable half of a tool call row, applied
// exactly once when the call finishes.
type ToolCallCompletion struct {
	CallID             int64
	ResultJSON         *string
	ResultCompressed   []byte
	ResultIsCompressed bool
	DurationMs         *int64
	Status             string
	ErrorMessage       *string
	CompletedAt        time.Time
}

// CompleteToolCall updates the row matching the correlation id. A missing
// id updates nothing, matching the orphan-safe end semantics.
func CompleteToolCall(ctx context.Context, db Execer, completion *ToolCallCompletion) error {
	if completion.Status == "" {
		completion.Status = CallCompleted
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now()
	}

	query := `UPDATE tool_calls SET completed_at = ?, result_json = ?, result_compressed = ?, result_is_compressed = ?, duration_ms = ?, status = ?, error_message = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query,
		completion.CompletedAt,
		completion.ResultJSON,
		completion.ResultCompressed,
		completion.ResultIsCompressed,
		completion.DurationMs,
		completion.Status,
		completion.ErrorMessage,
		completion.CallID,
	)
	return err
}

// InsertModification inserts one immutable modification row and returns
// its id.
func InsertModification(ctx context.Context, db Execer, mod *Modification) (int64, error) {
	if mod.CreatedAt.IsZero() {
		mod.CreatedAt = time.Now()
	}

	query := `INSERT INTO modifications (tool_call_id, agent_id, modification_type, file_path, old_content_hash, new_content_hash, diff_compressed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		mod.ToolCallID,
		mod.AgentID,
		mod.ModificationType,
		mod.FilePath,
		mod.OldContentHash,
		mod.NewContentHash,
		mod.DiffCompressed,
		mod.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// InsertSnapshot inserts one immutable state snapshot row and returns its
// id.
func InsertSnapshot(ctx context.Context, db Execer, snapshot *StateSnapshot) (int64, error) {
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	query := `INSERT INTO state_snapshots (session_id, agent_id, snapshot_type, state_json, state_compressed, is_compressed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		snapshot.SessionID,
		snapshot.AgentID,
		snapshot.SnapshotType,
		snapshot.StateJSON,
		snapshot.StateCompressed,
		snapshot.IsCompressed,
		snapshot.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
