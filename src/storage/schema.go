package storage

import "time"

// Agent status values.
const (
	AgentRunning   = "running"
	AgentCompleted = "completed"
	AgentFailed    = "failed"
)

// Tool call status values.
const (
	CallStarted   = "started"
	CallCompleted = "completed"
	CallFailed    = "failed"
)

// Modification types for the write-tracked tools.
const (
	ModFileWrite     = "file_write"
	ModFileEdit      = "file_edit"
	ModFileMultiEdit = "file_multi_edit"
)

// Session is one top-level run of the host runtime, keyed by its external
// session id. Rows are created insert-if-absent and never deleted here.
type Session struct {
	SessionID        string     `json:"session_id" db:"session_id"`
	UserCommand      *string    `json:"user_command,omitempty" db:"user_command"`
	WorkingDirectory *string    `json:"working_directory,omitempty" db:"working_directory"`
	MetadataJSON     *string    `json:"metadata_json,omitempty" db:"metadata_json"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// Agent is a sub-agent spawned within a session. Nesting is tracked only
// in the resolver's in-memory stack, not persisted as a graph.
type Agent struct {
	AgentID     string     `json:"agent_id" db:"agent_id"`
	SessionID   string     `json:"session_id" db:"session_id"`
	AgentName   string     `json:"agent_name" db:"agent_name"`
	AgentType   *string    `json:"agent_type,omitempty" db:"agent_type"`
	Prompt      *string    `json:"prompt,omitempty" db:"prompt"`
	UserCommand *string    `json:"user_command,omitempty" db:"user_command"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ToolCall is one tool execution. A nil AgentID means the main session.
// The row is inserted at call start and updated exactly once at call end;
// the auto-assigned id is the caller's only correlation handle.
type ToolCall struct {
	ID                     int64      `json:"id" db:"id"`
	AgentID                *string    `json:"agent_id,omitempty" db:"agent_id"`
	SessionID              string     `json:"session_id" db:"session_id"`
	ToolName               string     `json:"tool_name" db:"tool_name"`
	ParametersJSON         *string    `json:"parameters_json,omitempty" db:"parameters_json"`
	ParametersCompressed   []byte     `json:"-" db:"parameters_compressed"`
	ParametersIsCompressed bool       `json:"parameters_is_compressed" db:"parameters_is_compressed"`
	ResultJSON             *string    `json:"result_json,omitempty" db:"result_json"`
	ResultCompressed       []byte     `json:"-" db:"result_compressed"`
	ResultIsCompressed     bool       `json:"result_is_compressed" db:"result_is_compressed"`
	Status                 string     `json:"status" db:"status"`
	ErrorMessage           *string    `json:"error_message,omitempty" db:"error_message"`
	DurationMs             *int64     `json:"duration_ms,omitempty" db:"duration_ms"`
	CalledAt               time.Time  `json:"called_at" db:"called_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Modification is one file write or edit caused by a tool call. Content
// hashes are one-way digests for dedup and audit; the diff blob holds the
// compressed {old,new} content pair, not a patch.
type Modification struct {
	ID               int64     `json:"id" db:"id"`
	ToolCallID       *int64    `json:"tool_call_id,omitempty" db:"tool_call_id"`
	AgentID          *string   `json:"agent_id,omitempty" db:"agent_id"`
	ModificationType string    `json:"modification_type" db:"modification_type"`
	FilePath         string    `json:"file_path" db:"file_path"`
	OldContentHash   *string   `json:"old_content_hash,omitempty" db:"old_content_hash"`
	NewContentHash   *string   `json:"new_content_hash,omitempty" db:"new_content_hash"`
	DiffCompressed   []byte    `json:"-" db:"diff_compressed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// StateSnapshot is a point-in-time state capture, typically taken at agent
// boundaries. Immutable once written.
type StateSnapshot struct {
	ID              int64     `json:"id" db:"id"`
	SessionID       string    `json:"session_id" db:"session_id"`
	AgentID         *string   `json:"agent_id,omitempty" db:"agent_id"`
	SnapshotType    string    `json:"snapshot_type" db:"snapshot_type"`
	StateJSON       *string   `json:"state_json,omitempty" db:"state_json"`
	StateCompressed []byte    `json:"-" db:"state_compressed"`
	IsCompressed    bool      `json:"is_compressed" db:"is_compressed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
