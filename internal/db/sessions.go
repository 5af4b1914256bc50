package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/promoforge/promoforge/internal/models"
)

func (db *DB) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, product_id, status, scenario_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		session.ID, session.UserID, session.ProductID, session.Status,
		session.ScenarioID, session.Metadata,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, user_id, product_id, status, scenario_id, metadata, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	session := &models.Session{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.ProductID, &session.Status,
		&session.ScenarioID, &session.Metadata, &session.CreatedAt, &session.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (db *DB) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	query := `UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

func (db *DB) SetSessionScenario(ctx context.Context, id uuid.UUID, scenarioID string) error {
	query := `UPDATE sessions SET scenario_id = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, scenarioID, time.Now(), id)
	return err
}
