package store

import (
	"sync"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
)

// MemStore is the thread-safe in-memory record store. With a persister
// attached it writes each kind's records to disk in the background after
// every save; without one it serves as the test double.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [kind][canonical key]record
	data      map[string]map[string]*ledger.Record
	persister *Persistence
	wg        sync.WaitGroup
}

// NewMemStore initializes a store. It accepts existing data (from LoadAll)
// and an optional persister.
func NewMemStore(initialData map[string]map[string]*ledger.Record, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]*ledger.Record)
	}
	return &MemStore{data: initialData, persister: p}
}

// Wait blocks until all background persistence tasks complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

func (m *MemStore) FindByKey(kind, key string) (*ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.data[kind][key]
	if !ok {
		return nil, ledger.ErrRecordNotFound
	}
	// Return a copy so callers can merge into it without racing the map.
	return rec.Clone(), nil
}

func (m *MemStore) Save(rec *ledger.Record, expected int64) error {
	m.mu.Lock()

	key := rec.Key.String()
	current, exists := m.data[rec.Kind][key]

	if expected == 0 && exists {
		m.mu.Unlock()
		return ledger.ErrDuplicateKey
	}
	if expected > 0 {
		if !exists {
			m.mu.Unlock()
			return ledger.ErrRecordNotFound
		}
		if current.Revision != expected {
			m.mu.Unlock()
			return ledger.ErrRevisionConflict
		}
	}

	rec.Revision = expected + 1
	if m.data[rec.Kind] == nil {
		m.data[rec.Kind] = make(map[string]*ledger.Record)
	}
	m.data[rec.Kind][key] = rec.Clone()

	// Snapshot the kind's records to save safely in the background.
	snapshot := m.copyKindData(rec.Kind)
	m.mu.Unlock()

	if m.persister != nil {
		m.wg.Add(1)
		go func(kind string, recs map[string]*ledger.Record) {
			defer m.wg.Done()
			m.persister.SaveKind(kind, recs)
		}(rec.Kind, snapshot)
	}
	return nil
}

func (m *MemStore) ListKeys(kind string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data[kind] {
		keys = append(keys, k)
	}
	return keys, nil
}

// copyKindData deep-copies one kind's records. Callers must hold m.mu.
func (m *MemStore) copyKindData(kind string) map[string]*ledger.Record {
	original, ok := m.data[kind]
	if !ok {
		return nil
	}
	out := make(map[string]*ledger.Record, len(original))
	for k, rec := range original {
		out[k] = rec.Clone()
	}
	return out
}
