package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ecotwin/ecotwin/internal/store"
)

// allocationsFile is the default allocation table filename.
const allocationsFile = "allocations.json"

type persistedAllocations struct {
	Allocations []Allocation `json:"allocations"`
}

// Save persists the allocation table to a JSON file in the given directory.
// The directory must already exist.
func (a *Allocator) Save(dir string) error {
	a.mu.Lock()
	pa := persistedAllocations{Allocations: a.sortedUnlocked()}
	a.mu.Unlock()

	data, err := json.MarshalIndent(pa, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling allocations: %w", err)
	}

	path := filepath.Join(dir, allocationsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing allocations temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming allocations file: %w", err)
	}
	return nil
}

// Load replaces the allocation table with the one saved in dir. Entries
// whose resource is gone from the graph, or is no longer a Resource, are
// dropped without touching the graph. Entries whose session is no longer
// active are released, and surviving entries are rebuilt from current
// membership. A missing file leaves the table empty.
func (a *Allocator) Load(ctx context.Context, dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, allocationsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading allocations: %w", err)
	}

	var pa persistedAllocations
	if err := json.Unmarshal(data, &pa); err != nil {
		return fmt.Errorf("unmarshaling allocations: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.allocations = make(map[string]*Allocation, len(pa.Allocations))
	for _, saved := range pa.Allocations {
		saved := saved
		if err := a.checkResource(ctx, saved.ResourceID); err != nil {
			if !errors.Is(err, store.ErrDanglingReference) && !errors.Is(err, ErrNotAResource) {
				return err
			}
			a.logger.Warn("dropping saved allocation", "resource", saved.ResourceID, "session", saved.SessionID, "error", err)
			a.events.Log(map[string]any{
				"event":    "allocation_dropped",
				"resource": saved.ResourceID,
				"session":  saved.SessionID,
			})
			continue
		}
		members, err := a.sessions.MembersOf(saved.SessionID)
		if err != nil || len(members) == 0 {
			a.allocations[saved.ResourceID] = &saved
			if err := a.releaseUnlocked(ctx, saved.ResourceID); err != nil {
				return fmt.Errorf("releasing stale allocation: %w", err)
			}
			continue
		}
		alloc := a.build(saved.ResourceID, saved.SessionID, members)
		if err := a.annotate(ctx, alloc); err != nil {
			return err
		}
		a.allocations[saved.ResourceID] = &alloc
	}
	return nil
}

// AllocationsFilePath returns the expected path for the allocation table in the given directory.
func AllocationsFilePath(dir string) string {
	return filepath.Join(dir, allocationsFile)
}
