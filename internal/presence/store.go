// Package presence holds the in-memory presence state for tracked
// identities: a primary table covering every client type and an
// independent app-only table restricted to mobile clients. Records are
// pure state; delivery of changes is the caller's concern.
package presence

import (
	"sync"
	"time"

	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// table is one identity-keyed presence map. order remembers the first
// write per identity so snapshots come out in insertion order.
type table struct {
	records map[string]*types.PresenceRecord
	order   []string
}

func newTable() *table {
	return &table{records: make(map[string]*types.PresenceRecord)}
}

func (t *table) set(userID, status, name, branch string) types.PresenceRecord {
	rec, exists := t.records[userID]
	if !exists {
		rec = &types.PresenceRecord{}
		t.records[userID] = rec
		t.order = append(t.order, userID)
	}
	if status == "" {
		status = protocol.StatusIdle
	}
	rec.Status = status
	rec.Name = name
	rec.Branch = branch
	rec.UpdatedAt = time.Now()
	return *rec
}

func (t *table) remove(userID string) bool {
	if _, exists := t.records[userID]; !exists {
		return false
	}
	delete(t.records, userID)
	for i, id := range t.order {
		if id == userID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table) snapshot() []types.PresenceEntry {
	entries := make([]types.PresenceEntry, 0, len(t.records))
	for _, id := range t.order {
		entries = append(entries, types.PresenceEntry{UserID: id, PresenceRecord: *t.records[id]})
	}
	return entries
}

// Store owns the two presence tables. Every operation is guarded by a
// single mutex and completes synchronously; none of them can fail.
type Store struct {
	mu      sync.RWMutex
	primary *table
	app     *table
}

func NewStore() *Store {
	return &Store{primary: newTable(), app: newTable()}
}

// Set writes into the primary table. An empty status defaults to
// "idle"; any other value is stored as given. Callers on the
// status-report paths coerce invalid values to "active" first.
func (s *Store) Set(userID, status, name, branch string) types.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary.set(userID, status, name, branch)
}

// Report writes a status report into the primary table, coercing an
// invalid or missing status to "active".
func (s *Store) Report(userID, status, name, branch string) types.PresenceRecord {
	return s.Set(userID, protocol.CoerceStatus(status), name, branch)
}

// SetApp writes into the app-only table with Set semantics.
func (s *Store) SetApp(userID, status, name, branch string) types.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app.set(userID, status, name, branch)
}

// ReportApp writes a status report into the app-only table, coercing
// an invalid or missing status to "active".
func (s *Store) ReportApp(userID, status, name, branch string) types.PresenceRecord {
	return s.SetApp(userID, protocol.CoerceStatus(status), name, branch)
}

// RemoveApp deletes an identity from the app-only table. It reports
// whether an entry was actually removed; the primary table is never
// pruned, so a disconnected identity keeps its last known status there.
func (s *Store) RemoveApp(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app.remove(userID)
}

// Snapshot returns every primary-table entry exactly once, in
// first-write order.
func (s *Store) Snapshot() []types.PresenceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary.snapshot()
}

// SnapshotApp returns every app-table entry exactly once, in
// first-write order.
func (s *Store) SnapshotApp() []types.PresenceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.app.snapshot()
}
