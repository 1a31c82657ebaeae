package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
)

// CheckpointStore holds a single checkpoint document in memory.
type CheckpointStore struct {
	mu    sync.RWMutex
	doc   []byte
	saves int
}

// NewCheckpointStore constructs an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// Get implements checkpoint.Backend.
func (s *CheckpointStore) Get(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, checkpoint.ErrNotFound
	}
	return append([]byte(nil), s.doc...), nil
}

// Put implements checkpoint.Backend.
func (s *CheckpointStore) Put(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Saves reports how many documents were written.
func (s *CheckpointStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
