package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// StoragePaths contains paths for application storage
type StoragePaths struct {
	DatabasePath string
	LogDir       string
}

// GetDefaultStoragePaths returns default storage paths using XDG base directories
func GetDefaultStoragePaths() StoragePaths {
	// XDG_STATE_HOME holds runtime state data
	return StoragePaths{
		DatabasePath: filepath.Join(xdg.StateHome, "agentstate", "agent-state.db"),
		LogDir:       filepath.Join(xdg.StateHome, "agentstate", "logs"),
	}
}
