package quarantine

import (
	"context"
	"sync"

	"github.com/xaoc-labs/modcore/internal/core"
)

// RecordStore keeps the privilege snapshot taken when a user enters
// quarantine. One record exists per (community, user) while quarantined;
// it is consumed and deleted on release.
type RecordStore interface {
	// Put stores the snapshot, replacing any existing record for the key.
	Put(ctx context.Context, key core.Key, privileges []string) error

	// Get returns the snapshot and whether a record exists.
	Get(ctx context.Context, key core.Key) ([]string, bool, error)

	// Delete removes the record. Deleting a missing record is not an
	// error.
	Delete(ctx context.Context, key core.Key) error

	// List returns the user IDs with a record in the community.
	List(ctx context.Context, communityID string) ([]string, error)
}

// MemRecordStore is the default in-memory record store. State is
// process-lifetime only, matching the rest of the core.
type MemRecordStore struct {
	mu      sync.Mutex
	records map[core.Key][]string
}

// NewMemRecordStore creates an empty in-memory record store.
func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{records: make(map[core.Key][]string)}
}

func (s *MemRecordStore) Put(_ context.Context, key core.Key, privileges []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append([]string(nil), privileges...)
	return nil
}

func (s *MemRecordStore) Get(_ context.Context, key core.Key) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	privs, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]string(nil), privs...), true, nil
}

func (s *MemRecordStore) Delete(_ context.Context, key core.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemRecordStore) List(_ context.Context, communityID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for key := range s.records {
		if key.CommunityID == communityID {
			users = append(users, key.UserID)
		}
	}
	return users, nil
}
