// Package tasks tracks background task lifecycle behind a narrow Store
// interface so the worker and API never touch a vendor store directly.
// The Postgres implementation is the production path; when no database
// is configured (or the connection fails at startup) the service falls
// back to an in-memory store and keeps working single-instance.
package tasks

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/db"
	"github.com/promoforge/promoforge/internal/models"
)

type Store interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)

	// Start marks a task processing and stamps started_at.
	Start(ctx context.Context, id uuid.UUID) error
	// Progress updates the 0-100 progress and current step name.
	Progress(ctx context.Context, id uuid.UUID, progress int, step string) error
	Complete(ctx context.Context, id uuid.UUID, result models.JSONB, resultURL *string) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
	Cancel(ctx context.Context, id uuid.UUID) error

	// Cleanup removes finished tasks older than the cutoff.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// NewStore opens the Postgres-backed store, falling back to memory when
// databaseURL is empty or the connection cannot be established.
func NewStore(databaseURL string) (Store, *db.DB) {
	if databaseURL == "" {
		log.Println("[Tasks] No DATABASE_URL set, using in-memory task store")
		return NewMemoryStore(), nil
	}

	database, err := db.New(databaseURL)
	if err != nil {
		log.Printf("[Tasks] WARNING: database unavailable (%v), falling back to in-memory task store", err)
		return NewMemoryStore(), nil
	}

	return &postgresStore{db: database}, database
}

type postgresStore struct {
	db *db.DB
}

func (s *postgresStore) Create(ctx context.Context, task *models.Task) error {
	return s.db.CreateTask(ctx, task)
}

func (s *postgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.db.GetTask(ctx, id)
}

func (s *postgresStore) Start(ctx context.Context, id uuid.UUID) error {
	return s.db.UpdateTaskStatus(ctx, id, models.TaskStatusProcessing)
}

func (s *postgresStore) Progress(ctx context.Context, id uuid.UUID, progress int, step string) error {
	return s.db.UpdateTaskProgress(ctx, id, progress, step)
}

func (s *postgresStore) Complete(ctx context.Context, id uuid.UUID, result models.JSONB, resultURL *string) error {
	return s.db.CompleteTask(ctx, id, result, resultURL)
}

func (s *postgresStore) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return s.db.FailTask(ctx, id, errorMessage)
}

func (s *postgresStore) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.db.UpdateTaskStatus(ctx, id, models.TaskStatusCancelled)
}

func (s *postgresStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.db.CleanupTasks(ctx, olderThan)
}
