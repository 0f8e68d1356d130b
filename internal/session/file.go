package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// sessionsFile is the default session table filename.
const sessionsFile = "sessions.json"

// persistedSessions is the on-disk representation of the session table.
type persistedSessions struct {
	Sessions []Session `json:"sessions"`
}

// SaveLinker persists the session table to a JSON file in the given directory.
// The directory must already exist.
func SaveLinker(l *Linker, dir string) error {
	ps := persistedSessions{Sessions: l.Sessions()}

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}

	path := filepath.Join(dir, sessionsFile)

	// Write atomically via temp file + rename.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing sessions temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming sessions file: %w", err)
	}

	return nil
}

// LoadLinker reads the session table from the given directory.
// If the file does not exist, it returns an empty Linker.
// Observers are not persisted and must be registered again.
func LoadLinker(dir string) (*Linker, error) {
	l := NewLinker()

	data, err := os.ReadFile(filepath.Join(dir, sessionsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	var ps persistedSessions
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("unmarshaling sessions: %w", err)
	}

	for _, s := range ps.Sessions {
		members := dedupMembers(s.Members)
		if s.ID == "" || len(members) == 0 {
			continue
		}
		l.sessions[s.ID] = &Session{ID: s.ID, Members: members, LinkedAt: s.LinkedAt}
	}
	return l, nil
}

// SessionsFilePath returns the expected path for the session table in the given directory.
func SessionsFilePath(dir string) string {
	return filepath.Join(dir, sessionsFile)
}
