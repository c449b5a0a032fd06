// Package runs tracks course-creation workflow runs for polling clients.
package runs

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/lamim/uxie/pkg/models"
)

var (
	// ErrNotFound is returned for unknown run ids
	ErrNotFound = errors.New("run not found")
	// ErrExists is returned when creating a run whose id is taken
	ErrExists = errors.New("run already exists")
)

// Store persists runs. Returned runs are copies; mutate them through Update.
type Store interface {
	Create(ctx context.Context, run *models.Run) error
	Get(ctx context.Context, id string) (*models.Run, error)
	Update(ctx context.Context, id string, fn func(*models.Run)) (*models.Run, error)
	AppendProgress(ctx context.Context, id string, ev models.ProgressEvent) error
}

// MemoryStore keeps runs in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*models.Run
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*models.Run)}
}

func (s *MemoryStore) Create(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return ErrExists
	}
	s.runs[run.ID] = clone(run)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(run), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*models.Run)) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(run)
	run.UpdatedAt = time.Now()
	return clone(run), nil
}

func (s *MemoryStore) AppendProgress(ctx context.Context, id string, ev models.ProgressEvent) error {
	_, err := s.Update(ctx, id, func(r *models.Run) {
		r.Progress = append(r.Progress, ev)
	})
	return err
}

// clone copies the run and its progress slice. Request and Result are
// replaced wholesale, never mutated in place, so they are shared.
func clone(run *models.Run) *models.Run {
	c := *run
	c.Progress = slices.Clone(run.Progress)
	if c.Progress == nil {
		c.Progress = []models.ProgressEvent{}
	}
	return &c
}
