package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PushTokenRepository handles provider push token storage
type PushTokenRepository interface {
	GetToken(ctx context.Context, userID string) (*string, error)
	SetToken(ctx context.Context, userID, token string) error
	ClearToken(ctx context.Context, userID string) error
}

type pushTokenRepository struct {
	db *sqlx.DB
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(db *sqlx.DB) PushTokenRepository {
	return &pushTokenRepository{db: db}
}

// GetToken returns the user's current token, or nil when the user has no
// registered device.
func (r *pushTokenRepository) GetToken(ctx context.Context, userID string) (*string, error) {
	var token *string
	query := `SELECT token FROM push_tokens WHERE user_id = $1`

	err := r.db.GetContext(ctx, &token, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get push token: %w", err)
	}

	return token, nil
}

func (r *pushTokenRepository) SetToken(ctx context.Context, userID, token string) error {
	query := `
		INSERT INTO push_tokens (user_id, token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("failed to set push token: %w", err)
	}
	return nil
}

// ClearToken nulls the token. Clearing an already-null or missing token is
// a no-op.
func (r *pushTokenRepository) ClearToken(ctx context.Context, userID string) error {
	query := `UPDATE push_tokens SET token = NULL, updated_at = NOW() WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear push token: %w", err)
	}
	return nil
}
