package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// TokenRepository stores one refresh token per user and platform.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// RefreshToken returns the stored token or [shared.ErrNoRefreshToken].
func (r *TokenRepository) RefreshToken(ctx context.Context, userID string, platform models.Platform) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		"SELECT token FROM refresh_tokens WHERE user_id = ? AND platform = ?", userID, string(platform),
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && token == "") {
		return "", shared.ErrNoRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	return token, nil
}

// SaveRefreshToken inserts or replaces the user's token for platform.
func (r *TokenRepository) SaveRefreshToken(ctx context.Context, userID string, platform models.Platform, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, platform, token, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, userID, string(platform), token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}
