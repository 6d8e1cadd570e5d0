// Package tracker resolves the current session and agent identity from
// weak, environment-derived signals. The host does not hand hook processes
// a reliable identity, so resolution walks a fixed-order fallback chain:
// each source is strictly lower-confidence than the one before it, and an
// absent agent is a valid answer ("" means the main, non-agent session).
package tracker

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// Environment variable names the host sets when it propagates identity
// explicitly. These are the highest-confidence signals.
const (
	sessionEnvVar = "CLAUDE_SESSION_ID"
	agentEnvVar   = "CLAUDE_AGENT_ID"
)

// Context holds the resolved identity for one process invocation. Hook
// processes are short-lived, so resolution happens at most once per
// Context and the result is cached for the process lifetime. Construct
// one per invocation and pass it explicitly; there is no global state.
type Context struct {
	env Environment

	sessionID  string
	agentID    string
	agentStack []string
}

// New creates a resolution context over the given environment.
func New(env Environment) *Context {
	return &Context{env: env}
}

// strategy is one step of a fallback chain: it inspects the environment
// and returns an id, or "" to pass to the next step.
type strategy func(Environment) string

var sessionStrategies = []strategy{
	sessionFromEnv,
	sessionFromMarkers,
}

var agentStrategies = []strategy{
	agentFromEnv,
	agentFromTaskOutputs,
}

// ResolveSession returns the current session id, resolving it on first
// call and caching the result. When no signal is found a fresh id is
// generated, so this never fails.
func (c *Context) ResolveSession() string {
	if c.sessionID != "" {
		return c.sessionID
	}

	for _, resolve := range sessionStrategies {
		if id := resolve(c.env); id != "" {
			c.sessionID = id
			return id
		}
	}

	c.sessionID = generateSessionID(c.env)
	return c.sessionID
}

// ResolveAgent returns the current agent id, or "" when this is the main
// session. The nested-agent stack takes precedence over cached and
// inferred values; the explicit environment variable beats everything.
func (c *Context) ResolveAgent() string {
	if id := agentFromEnv(c.env); id != "" {
		return id
	}
	if len(c.agentStack) > 0 {
		return c.agentStack[len(c.agentStack)-1]
	}
	if c.agentID != "" {
		return c.agentID
	}
	if id := agentFromTaskOutputs(c.env); id != "" {
		c.agentID = id
		return id
	}
	return ""
}

// PushAgent records entry into a nested agent.
func (c *Context) PushAgent(agentID string) {
	c.agentStack = append(c.agentStack, agentID)
	c.agentID = agentID
}

// PopAgent records exit from the innermost agent and returns its id. The
// cached current agent becomes the new stack top, or "" when the stack is
// empty. Popping an empty stack returns "".
func (c *Context) PopAgent() string {
	if len(c.agentStack) == 0 {
		return ""
	}
	popped := c.agentStack[len(c.agentStack)-1]
	c.agentStack = c.agentStack[:len(c.agentStack)-1]
	if len(c.agentStack) > 0 {
		c.agentID = c.agentStack[len(c.agentStack)-1]
	} else {
		c.agentID = ""
	}
	return popped
}

// SetSession overrides the resolved session id.
func (c *Context) SetSession(sessionID string) {
	c.sessionID = sessionID
}

// SetAgent overrides the resolved agent id.
func (c *Context) SetAgent(agentID string) {
	c.agentID = agentID
}

// SessionInfo is the bundle of context defaults the event logger fills in
// when a caller omits them.
type SessionInfo struct {
	SessionID        string
	AgentID          string
	WorkingDirectory string
	UserCommand      string
	Timestamp        time.Time
}

// SessionInfo resolves the complete current context.
func (c *Context) SessionInfo() SessionInfo {
	wd, _ := c.env.Getwd()
	return SessionInfo{
		SessionID:        c.ResolveSession(),
		AgentID:          c.ResolveAgent(),
		WorkingDirectory: wd,
		UserCommand:      c.UserCommand(),
		Timestamp:        c.env.Now(),
	}
}

// ProcessMetadata exposes the environment's process metadata for session
// enrichment.
func (c *Context) ProcessMetadata() map[string]any {
	return c.env.ProcessMetadata()
}

// UserCommand extracts the prompt that most recently drove the host, read
// from the host's history log. Best effort: any failure yields "".
func (c *Context) UserCommand() string {
	historyPath := filepath.Join(c.env.HomeDir, ".claude", "history.jsonl")
	file, err := c.env.Fs.Open(historyPath)
	if err != nil {
		return ""
	}
	defer file.Close()

	var lastLine string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lastLine = line
		}
	}
	if lastLine == "" {
		return ""
	}

	var entry struct {
		UserMessage string `json:"userMessage"`
		Command     string `json:"command"`
	}
	if err := json.Unmarshal([]byte(lastLine), &entry); err != nil {
		return ""
	}
	if entry.UserMessage != "" {
		return entry.UserMessage
	}
	return entry.Command
}

func sessionFromEnv(env Environment) string {
	return env.Getenv(sessionEnvVar)
}

// sessionFromMarkers scans the host's per-user session directory for
// session marker files and uses the most recently modified one. The
// filename suffix after "session-" is the session id.
func sessionFromMarkers(env Environment) string {
	markerDir := filepath.Join(env.HomeDir, ".claude", "session-env")
	entries, err := afero.ReadDir(env.Fs, markerDir)
	if err != nil {
		return ""
	}

	var latest os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "session-") {
			continue
		}
		if latest == nil || entry.ModTime().After(latest.ModTime()) {
			latest = entry
		}
	}
	if latest == nil {
		return ""
	}

	name := strings.TrimSuffix(latest.Name(), filepath.Ext(latest.Name()))
	return strings.TrimPrefix(name, "session-")
}

func agentFromEnv(env Environment) string {
	return env.Getenv(agentEnvVar)
}

// agentFromTaskOutputs infers an agent id from the host's temporary task
// output area: the stem of the most recently modified *.output file across
// task directories. Lowest-confidence signal in the chain.
func agentFromTaskOutputs(env Environment) string {
	root := filepath.Join(env.TempDir, "claude")
	taskRoots, err := afero.ReadDir(env.Fs, root)
	if err != nil {
		return ""
	}

	var (
		latest     os.FileInfo
		latestName string
	)
	for _, taskRoot := range taskRoots {
		if !taskRoot.IsDir() {
			continue
		}
		taskDir := filepath.Join(root, taskRoot.Name(), "tasks")
		outputs, err := afero.ReadDir(env.Fs, taskDir)
		if err != nil {
			continue
		}
		for _, output := range outputs {
			if output.IsDir() || filepath.Ext(output.Name()) != ".output" {
				continue
			}
			if latest == nil || output.ModTime().After(latest.ModTime()) {
				latest = output
				latestName = output.Name()
			}
		}
	}
	if latest == nil {
		return ""
	}
	return strings.TrimSuffix(latestName, ".output")
}

// generateSessionID derives a fresh session id from the wall clock and
// process id. The digest is truncated to 16 hex characters: collisions
// are negligible for tracking purposes, and the id carries no secret.
func generateSessionID(env Environment) string {
	seed := fmt.Sprintf("%s-%d", env.Now().Format(time.RFC3339Nano), env.Pid)
	sum := blake3.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
