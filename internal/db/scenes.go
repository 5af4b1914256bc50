package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/promoforge/promoforge/internal/models"
)

func (db *DB) CreateScene(ctx context.Context, scene *models.Scene) error {
	query := `
		INSERT INTO scenes (
			id, session_id, description, duration_sec,
			image_prompt, visual_prompt, text_overlay_prompt
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		scene.ID, scene.SessionID, scene.Description, scene.DurationSec,
		scene.ImagePrompt, scene.VisualPrompt, scene.TextOverlayPrompt,
	).Scan(&scene.CreatedAt, &scene.UpdatedAt)
}

func (db *DB) GetScene(ctx context.Context, id string) (*models.Scene, error) {
	query := `
		SELECT
			id, session_id, description, duration_sec,
			image_prompt, visual_prompt, text_overlay_prompt,
			image_url, generated_video_url, created_at, updated_at
		FROM scenes
		WHERE id = $1
	`

	scene := &models.Scene{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&scene.ID, &scene.SessionID, &scene.Description, &scene.DurationSec,
		&scene.ImagePrompt, &scene.VisualPrompt, &scene.TextOverlayPrompt,
		&scene.ImageURL, &scene.GeneratedVideoURL,
		&scene.CreatedAt, &scene.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	return scene, nil
}

func (db *DB) UpdateSceneImageURL(ctx context.Context, id, imageURL string) error {
	query := `UPDATE scenes SET image_url = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, imageURL, time.Now(), id)
	return err
}

func (db *DB) UpdateSceneVideoURL(ctx context.Context, id, videoURL string) error {
	query := `UPDATE scenes SET generated_video_url = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, videoURL, time.Now(), id)
	return err
}
