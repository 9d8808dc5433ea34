package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
)

// MatchRepository stores learned pairings in the track_matches table.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new MatchRepository
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// FindMatch returns the row for (src, dst, sourceID) or nil when there is none.
func (r *MatchRepository) FindMatch(ctx context.Context, src, dst models.Platform, sourceID string) (*models.CachedMatch, error) {
	query := `
		SELECT destination_track_id, destination_name, updated_at
		FROM track_matches
		WHERE source_platform = ? AND destination_platform = ? AND source_track_id = ?
	`

	m := models.CachedMatch{SourcePlatform: src, DestinationPlatform: dst, SourceTrackID: sourceID}
	err := r.db.QueryRowContext(ctx, query, string(src), string(dst), sourceID).
		Scan(&m.DestinationTrackID, &m.DestinationName, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return &m, nil
}

// SaveMatches upserts every row in one transaction. A row without a destination never replaces a
// previously learned destination.
func (r *MatchRepository) SaveMatches(ctx context.Context, matches []models.CachedMatch) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_matches (source_platform, destination_platform, source_track_id, destination_track_id, destination_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_platform, destination_platform, source_track_id) DO UPDATE SET
			destination_track_id = CASE WHEN excluded.destination_track_id <> '' THEN excluded.destination_track_id ELSE track_matches.destination_track_id END,
			destination_name = CASE WHEN excluded.destination_track_id <> '' THEN excluded.destination_name ELSE track_matches.destination_name END,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range matches {
		if m.SourceTrackID == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx, string(m.SourcePlatform), string(m.DestinationPlatform), m.SourceTrackID,
			m.DestinationTrackID, m.DestinationName, now)
		if err != nil {
			return fmt.Errorf("failed to save match for %s: %w", m.SourceTrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}
	return nil
}
