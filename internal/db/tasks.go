package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/promoforge/promoforge/internal/models"
)

func (db *DB) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (
			id, type, status, progress, step, user_id, session_id, scene_id, payload, attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		task.ID, task.Type, task.Status, task.Progress, task.Step,
		task.UserID, task.SessionID, task.SceneID, task.Payload, task.Attempts,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
}

func (db *DB) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `
		SELECT
			id, type, status, progress, step, user_id, session_id, scene_id,
			payload, result, result_url, error_message, attempts,
			started_at, finished_at, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task := &models.Task{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.Type, &task.Status, &task.Progress, &task.Step,
		&task.UserID, &task.SessionID, &task.SceneID,
		&task.Payload, &task.Result, &task.ResultURL, &task.ErrorMessage,
		&task.Attempts, &task.StartedAt, &task.FinishedAt,
		&task.CreatedAt, &task.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

func (db *DB) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	now := time.Now()
	query := `UPDATE tasks SET status = $1, started_at = $2, updated_at = $2 WHERE id = $3`

	if status == models.TaskStatusCompleted || status == models.TaskStatusFailed || status == models.TaskStatusCancelled {
		query = `UPDATE tasks SET status = $1, finished_at = $2, updated_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

func (db *DB) UpdateTaskProgress(ctx context.Context, id uuid.UUID, progress int, step string) error {
	query := `UPDATE tasks SET progress = $1, step = $2, updated_at = $3 WHERE id = $4`
	_, err := db.ExecContext(ctx, query, progress, step, time.Now(), id)
	return err
}

func (db *DB) CompleteTask(ctx context.Context, id uuid.UUID, result models.JSONB, resultURL *string) error {
	query := `
		UPDATE tasks
		SET status = $1, progress = 100, result = $2, result_url = $3,
		    finished_at = $4, updated_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.TaskStatusCompleted, result, resultURL, time.Now(), id)
	return err
}

func (db *DB) FailTask(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, finished_at = $3, updated_at = $3,
		    attempts = attempts + 1
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.TaskStatusFailed, errorMessage, time.Now(), id)
	return err
}

// CleanupTasks deletes finished tasks older than the cutoff. Returns
// the number of rows removed.
func (db *DB) CleanupTasks(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM tasks
		WHERE finished_at IS NOT NULL AND finished_at < $1
	`
	res, err := db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tasks: %w", err)
	}
	return res.RowsAffected()
}
