package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/models"
)

// MemoryStore is the in-process fallback used when no database is
// configured. Task state is lost on restart; fine for development and
// single-instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*models.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *MemoryStore) Create(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}

	cp := *task
	return &cp, nil
}

func (s *MemoryStore) Start(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(t *models.Task) {
		now := time.Now()
		t.Status = models.TaskStatusProcessing
		t.StartedAt = &now
	})
}

func (s *MemoryStore) Progress(_ context.Context, id uuid.UUID, progress int, step string) error {
	return s.update(id, func(t *models.Task) {
		t.Progress = progress
		t.Step = &step
	})
}

func (s *MemoryStore) Complete(_ context.Context, id uuid.UUID, result models.JSONB, resultURL *string) error {
	return s.update(id, func(t *models.Task) {
		now := time.Now()
		t.Status = models.TaskStatusCompleted
		t.Progress = 100
		t.Result = result
		t.ResultURL = resultURL
		t.FinishedAt = &now
	})
}

func (s *MemoryStore) Fail(_ context.Context, id uuid.UUID, errorMessage string) error {
	return s.update(id, func(t *models.Task) {
		now := time.Now()
		t.Status = models.TaskStatusFailed
		t.ErrorMessage = &errorMessage
		t.Attempts++
		t.FinishedAt = &now
	})
}

func (s *MemoryStore) Cancel(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(t *models.Task) {
		now := time.Now()
		t.Status = models.TaskStatusCancelled
		t.FinishedAt = &now
	})
}

func (s *MemoryStore) Cleanup(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, t := range s.tasks {
		if t.FinishedAt != nil && t.FinishedAt.Before(olderThan) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) update(id uuid.UUID, fn func(*models.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found")
	}

	fn(task)
	task.UpdatedAt = time.Now()
	return nil
}
