package process

import (
	"sort"
	"sync"
)

// Table maps profile ids to their supervised process.
// A single mutex guards the map and is held only for the map operation itself;
// callers spawn, kill and wait outside of it.
type Table struct {
	mu      sync.Mutex
	entries map[string]*ManagedProcess
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*ManagedProcess)}
}

// TryInsert inserts mp iff its id is absent. It returns false without mutating
// the table when the id is already present (running or reserved).
func (t *Table) TryInsert(mp *ManagedProcess) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[mp.ProfileID]; exists {
		return false
	}
	t.entries[mp.ProfileID] = mp
	return true
}

// Reserve claims id with a pending placeholder so that exactly one caller
// proceeds to spawn.
func (t *Table) Reserve(id string) bool {
	return t.TryInsert(&ManagedProcess{ProfileID: id, pending: true})
}

// Commit replaces the pending placeholder for mp.ProfileID with mp.
// It reports false if no reservation exists.
func (t *Table) Commit(mp *ManagedProcess) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[mp.ProfileID]
	if !ok || !cur.pending {
		return false
	}
	t.entries[mp.ProfileID] = mp
	return true
}

// Release drops a pending reservation; committed entries are left alone.
func (t *Table) Release(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.entries[id]; ok && cur.pending {
		delete(t.entries, id)
	}
}

// Remove atomically removes and returns the committed entry for id.
func (t *Table) Remove(id string) (*ManagedProcess, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[id]
	if !ok || cur.pending {
		return nil, false
	}
	delete(t.entries, id)
	return cur, true
}

// Get returns the committed entry for id.
func (t *Table) Get(id string) (*ManagedProcess, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[id]
	if !ok || cur.pending {
		return nil, false
	}
	return cur, true
}

// Pending reports whether id is reserved by an in-flight start.
func (t *Table) Pending(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[id]
	return ok && cur.pending
}

// Reap removes and returns the entry for id if its process has exited.
// The probe is a channel poll, so it is safe under the lock.
func (t *Table) Reap(id string) (*ManagedProcess, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.entries[id]
	if !ok || cur.pending || !cur.Exited() {
		return nil, false
	}
	delete(t.entries, id)
	return cur, true
}

// IDs returns the sorted ids of all entries, reservations included.
func (t *Table) IDs() []string {
	t.mu.Lock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
