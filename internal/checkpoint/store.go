package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/hash/sha256"
)

// ErrNotFound is returned by a Backend when no checkpoint has been written yet.
var ErrNotFound = errors.New("checkpoint not found")

// Backend reads and writes the serialized checkpoint document. Put must
// replace the previous document as a whole.
type Backend interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
}

// Store implements crawler.CheckpointStore on top of a Backend.
type Store struct {
	backend Backend
	hasher  crawler.Hasher
	logger  *zap.Logger
}

// NewStore wires a backend and hasher into a Store.
func NewStore(backend Backend, hasher crawler.Hasher, logger *zap.Logger) *Store {
	if hasher == nil {
		hasher = sha256.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		hasher:  hasher,
		logger:  logger,
	}
}

// Load returns the checkpoint for jobs and the pending jobs in job-list order.
// The state is reset when the job list changed or every job already completed.
func (s *Store) Load(ctx context.Context, jobs []crawler.JobID) (crawler.CheckpointState, []crawler.JobID, error) {
	fingerprint, err := sha256.Fingerprint(s.hasher, jobs)
	if err != nil {
		return crawler.CheckpointState{}, nil, fmt.Errorf("fingerprint jobs: %w", err)
	}
	fresh := crawler.CheckpointState{
		Fingerprint: fingerprint,
		AllJobs:     append([]crawler.JobID(nil), jobs...),
		Completed:   []crawler.JobID{},
	}

	stored, err := s.read(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("no checkpoint found; starting fresh")
		return fresh, pendingJobs(jobs, fresh), nil
	case errors.Is(err, errCorrupt):
		s.logger.Warn("checkpoint unreadable; starting fresh", zap.Error(err))
		return fresh, pendingJobs(jobs, fresh), nil
	case err != nil:
		return crawler.CheckpointState{}, nil, err
	}

	if stored.Fingerprint != fingerprint {
		s.logger.Info("job list changed since last checkpoint; starting fresh",
			zap.String("stored", stored.Fingerprint),
			zap.String("current", fingerprint),
		)
		return fresh, pendingJobs(jobs, fresh), nil
	}

	state := fresh
	state.Completed = restrictTo(stored.Completed, jobs)
	if len(jobs) > 0 && len(state.Completed) == len(pendingJobs(jobs, fresh)) {
		s.logger.Info("previous run already completed every job; starting fresh")
		state.Completed = []crawler.JobID{}
	}
	return state, pendingJobs(jobs, state), nil
}

// Save overwrites the persisted checkpoint with state.
func (s *Store) Save(ctx context.Context, state crawler.CheckpointState) error {
	if state.Completed == nil {
		state.Completed = []crawler.JobID{}
	}
	if state.AllJobs == nil {
		state.AllJobs = []crawler.JobID{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.backend.Put(ctx, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Peek returns the stored checkpoint without applying any reset rules.
func (s *Store) Peek(ctx context.Context) (crawler.CheckpointState, error) {
	return s.read(ctx)
}

// Reset writes an empty checkpoint for jobs.
func (s *Store) Reset(ctx context.Context, jobs []crawler.JobID) (crawler.CheckpointState, error) {
	fingerprint, err := sha256.Fingerprint(s.hasher, jobs)
	if err != nil {
		return crawler.CheckpointState{}, fmt.Errorf("fingerprint jobs: %w", err)
	}
	state := crawler.CheckpointState{
		Fingerprint: fingerprint,
		AllJobs:     append([]crawler.JobID(nil), jobs...),
		Completed:   []crawler.JobID{},
	}
	if err := s.Save(ctx, state); err != nil {
		return crawler.CheckpointState{}, err
	}
	return state, nil
}

var errCorrupt = errors.New("corrupt checkpoint")

func (s *Store) read(ctx context.Context) (crawler.CheckpointState, error) {
	data, err := s.backend.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return crawler.CheckpointState{}, ErrNotFound
		}
		return crawler.CheckpointState{}, fmt.Errorf("read checkpoint: %w", err)
	}
	if len(data) == 0 {
		return crawler.CheckpointState{}, ErrNotFound
	}
	var state crawler.CheckpointState
	if err := json.Unmarshal(data, &state); err != nil {
		return crawler.CheckpointState{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if state.Fingerprint == "" {
		return crawler.CheckpointState{}, fmt.Errorf("%w: missing fingerprint", errCorrupt)
	}
	return state, nil
}

// restrictTo keeps completed IDs that belong to jobs, dropping duplicates.
func restrictTo(completed, jobs []crawler.JobID) []crawler.JobID {
	valid := make(map[crawler.JobID]struct{}, len(jobs))
	for _, job := range jobs {
		valid[job] = struct{}{}
	}
	out := make([]crawler.JobID, 0, len(completed))
	seen := make(map[crawler.JobID]struct{}, len(completed))
	for _, id := range completed {
		if _, ok := valid[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func pendingJobs(jobs []crawler.JobID, state crawler.CheckpointState) []crawler.JobID {
	done := make(map[crawler.JobID]struct{}, len(state.Completed))
	for _, id := range state.Completed {
		done[id] = struct{}{}
	}
	pending := make([]crawler.JobID, 0, len(jobs))
	seen := make(map[crawler.JobID]struct{}, len(jobs))
	for _, job := range jobs {
		if _, ok := done[job]; ok {
			continue
		}
		if _, dup := seen[job]; dup {
			continue
		}
		seen[job] = struct{}{}
		pending = append(pending, job)
	}
	return pending
}
