package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// GetSession retrieves a session by its id, or nil when not found.
func GetSession(ctx context.Context, db sqlscan.Querier, sessionID string) (*Session, error) {
	query := `SELECT * FROM sessions WHERE session_id = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListSessions returns sessions newest-first. A limit of 0 means no limit.
func ListSessions(ctx context.Context, db sqlscan.Querier, limit int) ([]Session, error) {
	query := `SELECT * FROM sessions ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var sessions []Session
	if err := sqlscan.Select(ctx, db, &sessions, query, args...); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListAgents returns the agents of a session newest-first.
func ListAgents(ctx context.Context, db sqlscan.Querier, sessionID string) ([]Agent, error) {
	query := `SELECT * FROM agents WHERE session_id = ? ORDER BY created_at DESC`
	var agents []Agent
	if err := sqlscan.Select(ctx, db, &agents, query, sessionID); err != nil {
		return nil, err
	}
	return agents, nil
}

// GetToolCall retrieves a tool call by its correlation id, or nil when not
// found.
func GetToolCall(ctx context.Context, db sqlscan.Querier, callID int64) (*ToolCall, error) {
	query := `SELECT * FROM tool_calls WHERE id = ?`
	var call ToolCall
	err := sqlscan.Get(ctx, db, &call, query, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// ListToolCallsBySession returns a session's tool calls newest-first.
func ListToolCallsBySession(ctx context.Context, db sqlscan.Querier, sessionID string) ([]ToolCall, error) {
	query := `SELECT * FROM tool_calls WHERE session_id = ? ORDER BY called_at DESC`
	var calls []ToolCall
	if err := sqlscan.Select(ctx, db, &calls, query, sessionID); err != nil {
		return nil, err
	}
	return calls, nil
}

// ListToolCallsByAgent returns an agent's tool calls newest-first.
func ListToolCallsByAgent(ctx context.Context, db sqlscan.Querier, agentID string) ([]ToolCall, error) {
	query := `SELECT * FROM tool_calls WHERE agent_id = ? ORDER BY called_at DESC`
	var calls []ToolCall
	if err := sqlscan.Select(ctx, db, &calls, query, agentID); err != nil {
		return nil, err
	}
	return calls, nil
}

// ListModificationsByToolCall returns the modifications recorded for one
// tool call, oldest-first.
func ListModificationsByToolCall(ctx context.Context, db sqlscan.Querier, callID int64) ([]Modification, error) {
	query := `SELECT * FROM modifications WHERE tool_call_id = ? ORDER BY created_at`
	var mods []Modification
	if err := sqlscan.Select(ctx, db, &mods, query, callID); err != nil {
		return nil, err
	}
	return mods, nil
}

// ListModificationsBySession returns all modifications caused by a
// session's tool calls, oldest-first. Modifications carry no session id of
// their own, so the ownership goes through the tool call row.
func ListModificationsBySession(ctx context.Context, db sqlscan.Querier, sessionID string) ([]Modification, error) {
	query := `SELECT m.* FROM modifications m JOIN tool_calls t ON m.tool_call_id = t.id WHERE t.session_id = ? ORDER BY m.created_at`
	var mods []Modification
	if err := sqlscan.Select(ctx, db, &mods, query, sessionID); err != nil {
		return nil, err
	}
	return mods, nil
}

// ListRecentModifications returns the most recent modifications across all
// sessions, newest-first, capped at limit.
func ListRecentModifications(ctx context.Context, db sqlscan.Querier, limit int) ([]Modification, error) {
	query := `SELECT * FROM modifications ORDER BY created_at DESC LIMIT ?`
	var mods []Modification
	if err := sqlscan.Select(ctx, db, &mods, query, limit); err != nil {
		return nil, err
	}
	return mods, nil
}

// ListModificationsByFile returns modifications whose file path contains the
// given substring, newest-first, capped at limit.
func ListModificationsByFile(ctx context.Context, db sqlscan.Querier, pathSubstring string, limit int) ([]Modification, error) {
	query := `SELECT * FROM modifications WHERE file_path LIKE ? ORDER BY created_at DESC LIMIT ?`
	var mods []Modification
	if err := sqlscan.Select(ctx, db, &mods, query, "%"+pathSubstring+"%", limit); err != nil {
		return nil, err
	}
	return mods, nil
}

// ListModificationsByAgent returns an agent's modifications, newest-first,
// capped at limit.
func ListModificationsByAgent(ctx context.Context, db sqlscan.Querier, agentID string, limit int) ([]Modification, error) {
	query := `SELECT * FROM modifications WHERE agent_id = ? ORDER BY created_at DESC LIMIT ?`
	var mods []Modification
	if err := sqlscan.Select(ctx, db, &mods, query, agentID, limit); err != nil {
		return nil, err
	}
	return mods, nil
}

// ListSnapshotsBySession returns a session's state snapshots oldest-first.
func ListSnapshotsBySession(ctx context.Context, db sqlscan.Querier, sessionID string) ([]StateSnapshot, error) {
	query := `SELECT * FROM state_snapshots WHERE session_id = ? ORDER BY created_at`
	var snapshots []StateSnapshot
	if err := sqlscan.Select(ctx, db, &snapshots, query, sessionID); err != nil {
		return nil, err
	}
	return snapshots, nil
}
