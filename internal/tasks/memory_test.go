package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/models"
)

func newTestTask() *models.Task {
	return &models.Task{
		ID:     uuid.New(),
		Type:   models.TaskTypeMergeVideo,
		Status: models.TaskStatusPending,
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	task := newTestTask()
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Start(ctx, task.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.TaskStatusProcessing {
		t.Errorf("status after start = %v, want processing", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("started_at not stamped")
	}

	if err := store.Progress(ctx, task.ID, 50, "compositing frames"); err != nil {
		t.Fatalf("progress: %v", err)
	}
	got, _ = store.Get(ctx, task.ID)
	if got.Progress != 50 || got.Step == nil || *got.Step != "compositing frames" {
		t.Errorf("progress = %d step = %v", got.Progress, got.Step)
	}

	url := "https://example.com/video.mp4"
	if err := store.Complete(ctx, task.ID, models.JSONB{"frames": 300}, &url); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ = store.Get(ctx, task.ID)
	if got.Status != models.TaskStatusCompleted || got.Progress != 100 {
		t.Errorf("after complete: status=%v progress=%d", got.Status, got.Progress)
	}
	if got.ResultURL == nil || *got.ResultURL != url {
		t.Errorf("result_url = %v", got.ResultURL)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not stamped")
	}
}

func TestMemoryStoreFail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	task := newTestTask()
	store.Create(ctx, task)

	if err := store.Fail(ctx, task.ID, "transcode failed"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, _ := store.Get(ctx, task.ID)
	if got.Status != models.TaskStatusFailed {
		t.Errorf("status = %v, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "transcode failed" {
		t.Errorf("error_message = %v", got.ErrorMessage)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	task := newTestTask()
	store.Create(ctx, task)

	got, _ := store.Get(ctx, task.ID)
	got.Progress = 99

	again, _ := store.Get(ctx, task.ID)
	if again.Progress == 99 {
		t.Error("mutating a returned task leaked into the store")
	}
}

func TestMemoryStoreUnknownTask(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, uuid.New()); err == nil {
		t.Error("expected error for unknown task")
	}
	if err := store.Start(ctx, uuid.New()); err == nil {
		t.Error("expected error starting unknown task")
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	finished := newTestTask()
	store.Create(ctx, finished)
	store.Complete(ctx, finished.ID, nil, nil)

	pending := newTestTask()
	store.Create(ctx, pending)

	removed, err := store.Cleanup(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := store.Get(ctx, finished.ID); err == nil {
		t.Error("finished task survived cleanup")
	}
	if _, err := store.Get(ctx, pending.ID); err != nil {
		t.Error("pending task was removed by cleanup")
	}
}
