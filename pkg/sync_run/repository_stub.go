package sync_run

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type RepositoryStub struct {
	mu   sync.Mutex
	runs map[uuid.UUID]SyncRun
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{runs: map[uuid.UUID]SyncRun{}}
}

func (s *RepositoryStub) Store(_ context.Context, run SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Id] = run
	return nil
}

func (s *RepositoryStub) Get(_ context.Context, id uuid.UUID) (SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return SyncRun{}, ErrRunNotFound
	}
	return run, nil
}

func (s *RepositoryStub) List(_ context.Context, limit int) ([]SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]SyncRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
