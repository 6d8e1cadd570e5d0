// Package hook adapts the host's pre/post tool-execution notifications to
// event logger calls. One structured event in on stdin, one structured
// acknowledgement out on stdout, and the host is never blocked: whatever
// goes wrong inside, the adapter acknowledges and the process exits zero.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elee1766/agentstate/src/statelog"
)

// Event is the structured payload the host writes to the hook's stdin.
// The pre-call event carries tool_name and parameters; the post-call event
// additionally carries result, error, the correlation call_id from the
// pre-call acknowledgement, and optional epoch-second timestamps.
type Event struct {
	ToolName       string         `json:"tool_name"`
	Parameters     map[string]any `json:"parameters"`
	Result         any            `json:"result,omitempty"`
	Error          any            `json:"error,omitempty"`
	CallID         *int64         `json:"call_id,omitempty"`
	Timestamp      any            `json:"timestamp,omitempty"`
	StartTimestamp *float64       `json:"start_timestamp,omitempty"`
	EndTimestamp   *float64       `json:"end_timestamp,omitempty"`
}

// preAck is the pre-call acknowledgement. CallID is null when logging
// failed; Timestamp passes the input timestamp through for the host.
type preAck struct {
	CallID    *int64 `json:"call_id"`
	Timestamp any    `json:"timestamp"`
}

// RunPre handles the pre-call event: it logs the tool call start and
// acknowledges with the correlation id the host should hand back on the
// post-call event.
func RunPre(ctx context.Context, in io.Reader, out io.Writer, logger *statelog.Logger) {
	defer rescue(out)

	event, err := readEvent(in)
	if err != nil {
		writeJSON(out, systemMessage(fmt.Sprintf("agent logger error in pre hook: %v", err)))
		return
	}

	toolName := event.ToolName
	if toolName == "" {
		toolName = "Unknown"
	}

	// Ensure the session row exists before the first event references it.
	logger.LogSessionStart(ctx, statelog.SessionStart{})

	ack := preAck{Timestamp: event.Timestamp}
	if callID := logger.LogToolCallStart(ctx, toolName, event.Parameters, "", ""); callID != 0 {
		ack.CallID = &callID
	}
	writeJSON(out, ack)
}

// RunPost handles the post-call event: it closes the tool call row and
// records file modifications for the write-tracked tools. The output is
// {} on success or an advisory systemMessage; either way the host
// proceeds.
func RunPost(ctx context.Context, in io.Reader, out io.Writer, logger *statelog.Logger) {
	defer rescue(out)

	event, err := readEvent(in)
	if err != nil {
		writeJSON(out, systemMessage(fmt.Sprintf("agent logger error in post hook: %v", err)))
		return
	}

	status := statelog.StatusCompleted
	var errorMessage string
	if event.Error != nil {
		status = statelog.StatusFailed
		errorMessage = fmt.Sprintf("%v", event.Error)
	}

	var durationMs *int64
	if event.StartTimestamp != nil && event.EndTimestamp != nil {
		ms := int64((*event.EndTimestamp - *event.StartTimestamp) * 1000)
		durationMs = &ms
	}

	// A lost correlation id leaves the started row behind; there is no
	// reliable way to match it back up, so the completion is dropped.
	if event.CallID != nil {
		logger.LogToolCallEnd(ctx, *event.CallID, statelog.ToolCallEnd{
			Result:       event.Result,
			DurationMs:   durationMs,
			Status:       status,
			ErrorMessage: errorMessage,
		})
	}

	if status == statelog.StatusCompleted {
		trackModification(ctx, logger, event)
	}

	writeJSON(out, struct{}{})
}

// writeTracked maps the tool names whose parameters identify a target
// file and its before/after content onto modification types.
var writeTracked = map[string]string{
	"Write":     "file_write",
	"Edit":      "file_edit",
	"MultiEdit": "file_multi_edit",
}

// trackModification records a modification row for the write-tracked
// tools, extracting file path and content from the tool parameters.
func trackModification(ctx context.Context, logger *statelog.Logger, event *Event) {
	modType, tracked := writeTracked[event.ToolName]
	if !tracked {
		return
	}

	filePath, _ := event.Parameters["file_path"].(string)
	if filePath == "" {
		return
	}

	var callID int64
	if event.CallID != nil {
		callID = *event.CallID
	}

	mod := statelog.FileModification{
		ToolCallID: callID,
		Type:       modType,
		FilePath:   filePath,
	}

	switch event.ToolName {
	case "Write":
		mod.NewContent, _ = event.Parameters["content"].(string)
	case "Edit":
		mod.OldContent, _ = event.Parameters["old_string"].(string)
		mod.NewContent, _ = event.Parameters["new_string"].(string)
	case "MultiEdit":
		// A multi-edit is logged as one modification; the edit list
		// stands in for the old content.
		if edits, ok := event.Parameters["edits"]; ok {
			if encoded, err := json.Marshal(edits); err == nil {
				mod.OldContent = string(encoded)
			}
		}
		mod.NewContent = "[multiple edits]"
	}

	logger.LogModification(ctx, mod)
}

func readEvent(in io.Reader) (*Event, error) {
	var event Event
	decoder := json.NewDecoder(in)
	if err := decoder.Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode hook event: %w", err)
	}
	return &event, nil
}

func writeJSON(out io.Writer, v any) {
	encoder := json.NewEncoder(out)
	_ = encoder.Encode(v)
}

func systemMessage(message string) map[string]string {
	return map[string]string{"systemMessage": message}
}

// rescue converts a panic anywhere in the adapter into an advisory
// acknowledgement. The hook boundary must acknowledge no matter what.
func rescue(out io.Writer) {
	if r := recover(); r != nil {
		writeJSON(out, systemMessage(fmt.Sprintf("agent logger panic: %v", r)))
	}
}
