package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ecotwin/ecotwin/internal/constants"
)

// StateDirName is the directory holding the graph database, JSONL exports,
// session and allocation state.
const StateDirName = constants.StateDirName

// GlobalStatePath returns the path to the global state directory.
// On Unix: ~/.ecotwin
// On Windows: %USERPROFILE%\.ecotwin
func GlobalStatePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, StateDirName), nil
}

// LocalStatePath returns the path to the state directory for the given project root.
func LocalStatePath(projectRoot string) string {
	return filepath.Join(projectRoot, StateDirName)
}

// EnsureStateDir creates the state directory under projectRoot if it doesn't exist.
func EnsureStateDir(projectRoot string) (string, error) {
	dir := LocalStatePath(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", StateDirName, err)
	}
	return dir, nil
}
