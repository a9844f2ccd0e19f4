package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store and Reader for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Record
	for _, r := range s.records {
		if filter.Email != "" && r.Email != filter.Email {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && r.ReceivedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !r.ReceivedAt.Before(filter.Until) {
			continue
		}
		matched = append(matched, r)
	}

	// Newest first, matching the SQL reader.
	slices.Reverse(matched)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Len returns the number of appended records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
