package tracker

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/afero"
)

// Environment bundles the ambient inputs identity resolution reads:
// environment variables, the filesystem holding session markers and task
// outputs, the clock and the process id. Tests inject a fake environment
// (afero.MemMapFs, fixed clock) instead of the real one.
type Environment struct {
	Getenv  func(string) string
	Getwd   func() (string, error)
	Fs      afero.Fs
	HomeDir string
	TempDir string
	Now     func() time.Time
	Pid     int
}

// DefaultEnvironment returns the real process environment.
func DefaultEnvironment() Environment {
	home, _ := os.UserHomeDir()
	return Environment{
		Getenv:  os.Getenv,
		Getwd:   os.Getwd,
		Fs:      afero.NewOsFs(),
		HomeDir: home,
		TempDir: os.TempDir(),
		Now:     time.Now,
		Pid:     os.Getpid(),
	}
}

// ProcessMetadata collects best-effort information about the invoking
// process for session metadata. Lookup failures just omit fields.
func (e Environment) ProcessMetadata() map[string]any {
	meta := map[string]any{"pid": e.Pid}

	proc, err := process.NewProcess(int32(e.Pid))
	if err != nil {
		return meta
	}
	if name, err := proc.Name(); err == nil {
		meta["process_name"] = name
	}
	if ppid, err := proc.Ppid(); err == nil {
		meta["parent_pid"] = ppid
	}
	return meta
}
