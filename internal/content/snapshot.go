package content

import (
	"io/fs"
	"time"

	"github.com/keithlinneman/linnemanlabs-content/internal/loader"
)

type Snapshot struct {
	FS          fs.FS
	Collections map[string][]loader.Entry
	Meta        Meta
	LoadedAt    time.Time

	index map[string]map[string]int
}

func (s *Snapshot) buildIndex() {
	s.index = make(map[string]map[string]int, len(s.Collections))
	for name, entries := range s.Collections {
		ids := make(map[string]int, len(entries))
		for i, e := range entries {
			ids[e.ID] = i
		}
		s.index[name] = ids
	}
}

// Entry returns the entry with the given ID in collection name.
func (s *Snapshot) Entry(name, id string) (loader.Entry, bool) {
	if s.index == nil {
		for _, e := range s.Collections[name] {
			if e.ID == id {
				return e, true
			}
		}
		return loader.Entry{}, false
	}
	i, ok := s.index[name][id]
	if !ok {
		return loader.Entry{}, false
	}
	return s.Collections[name][i], true
}

// Counts returns the number of entries per collection.
func (s *Snapshot) Counts() map[string]int {
	out := make(map[string]int, len(s.Collections))
	for name, entries := range s.Collections {
		out[name] = len(entries)
	}
	return out
}

// Total is the number of entries across all collections.
func (s *Snapshot) Total() int {
	n := 0
	for _, entries := range s.Collections {
		n += len(entries)
	}
	return n
}
