package chronicle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process VersionStore. It backs tests and embedded
// use; production deployments use the postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	seq      int64
	versions []Version
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, v *Version) error {
	if v.Persisted() {
		return fmt.Errorf("version %d already appended", v.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	v.ID = s.seq
	s.versions = append(s.versions, *v)
	return nil
}

func (s *MemoryStore) ForItem(ctx context.Context, itemType, itemID string) ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Version
	for _, v := range s.versions {
		if v.ItemType != itemType {
			continue
		}
		if v.ItemID == nil || *v.ItemID != itemID {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return before(&out[i], &out[j])
	})
	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions {
		if v.ID == id {
			return v, nil
		}
	}
	return Version{}, ErrNotFound
}

func (s *MemoryStore) UpdateCreatedAt(ctx context.Context, id int64, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.versions {
		if s.versions[i].ID == id {
			s.versions[i].CreatedAt = createdAt.UTC()
			return nil
		}
	}
	return ErrNotFound
}
