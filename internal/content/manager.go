package content

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/linnemanlabs-content/internal/loader"
)

// ErrNotReady is returned by ReadyErr until a snapshot has been set.
var ErrNotReady = errors.New("content: no active snapshot")

type Manager struct {
	active atomic.Pointer[Snapshot]
}

func NewManager() *Manager { return &Manager{} }

// Set sets the active snapshot safely
func (m *Manager) Set(s Snapshot) {
	// copy so later changes to the caller's value are not visible to readers
	cp := new(Snapshot)
	*cp = s
	if cp.LoadedAt.IsZero() {
		cp.LoadedAt = time.Now().UTC()
	}
	cp.buildIndex()
	m.active.Store(cp)
}

// Get retrieves the active snapshot value
func (m *Manager) Get() (*Snapshot, bool) {
	s := m.active.Load()
	return s, s != nil && s.Collections != nil
}

// ReadyErr returns an error if there is no active snapshot
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return ErrNotReady
	}
	return nil
}

// Entries returns the entries of a collection in the active snapshot.
func (m *Manager) Entries(name string) ([]loader.Entry, bool) {
	s, ok := m.Get()
	if !ok {
		return nil, false
	}
	entries, ok := s.Collections[name]
	return entries, ok
}

// Entry returns one entry of the active snapshot.
func (m *Manager) Entry(name, id string) (loader.Entry, bool) {
	s, ok := m.Get()
	if !ok {
		return loader.Entry{}, false
	}
	return s.Entry(name, id)
}

// ContentHash returns the current content hash for headers
func (m *Manager) ContentHash() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	return s.Meta.Hash
}

// Fingerprint returns the source revision of the current snapshot.
func (m *Manager) Fingerprint() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	return s.Meta.Fingerprint
}

// Source returns the source of the current content, or SourceUnknown if not available
func (m *Manager) Source() SourceKind {
	s := m.active.Load()
	if s == nil {
		return SourceUnknown
	}
	return s.Meta.Source
}

// LoadedAt returns the time when the current content snapshot was loaded, or zero if not available
func (m *Manager) LoadedAt() time.Time {
	s := m.active.Load()
	if s == nil {
		return time.Time{}
	}
	return s.LoadedAt
}
