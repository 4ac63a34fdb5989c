package domain

import (
	"strings"
	"time"
)

// Snapshot is the in memory representation of the denylist.
// A Snapshot is never modified after NewSnapshot returns; reloads build a new one.
type Snapshot struct {
	entries  map[string]struct{}
	Source   string    // file the entries were read from
	LoadedAt time.Time // zero for the empty startup snapshot
}

// NewSnapshot builds a snapshot from already-cleaned entries.
// Blank entries are dropped; duplicates collapse.
func NewSnapshot(entries []string, source string, loadedAt time.Time) *Snapshot {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return &Snapshot{
		entries:  set,
		Source:   source,
		LoadedAt: loadedAt,
	}
}

// EmptySnapshot is what the holder serves before the first load.
func EmptySnapshot() *Snapshot {
	return &Snapshot{entries: map[string]struct{}{}}
}

// Len returns the number of distinct entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Contains reports whether e is an entry, verbatim.
func (s *Snapshot) Contains(e string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[e]
	return ok
}
