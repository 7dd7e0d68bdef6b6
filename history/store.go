package history

import (
	"fmt"
	"sort"
	"sync"
)

// Store persists boost records.
type Store interface {
	// Put stores a record. It fails with ErrDuplicateRecord if a record
	// for the same child already exists.
	Put(rec *Record) error

	// Get retrieves a record by child txid.
	Get(childTxID string) (*Record, error)

	// List returns every record ordered by creation time.
	List() ([]*Record, error)

	// Reset removes all records.
	Reset() error
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record)}
}

// Put stores a copy of rec.
func (s *MemStore) Put(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ChildTxID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ChildTxID)
	}
	s.records[rec.ChildTxID] = rec.clone()
	return nil
}

// Get retrieves a record by child txid.
func (s *MemStore) Get(childTxID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[childTxID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.clone(), nil
}

// List returns every record ordered by creation time.
func (s *MemStore) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, rec.clone())
	}
	sortRecords(result)
	return result, nil
}

// Reset removes all records.
func (s *MemStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
	return nil
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ChildTxID < recs[j].ChildTxID
	})
}
