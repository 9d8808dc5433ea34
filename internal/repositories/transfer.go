package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// TransferRepository stores transfer audit records.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// CreateTransfer validates and inserts record, filling in its ID and CreatedAt when unset.
func (r *TransferRepository) CreateTransfer(ctx context.Context, record *models.TransferRecord) error {
	prepareTransfer(record)
	if err := record.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO transfers (id, user_id, source_platform, destination_platform, source_playlist_id,
			destination_playlist_id, status, tracks_total, tracks_matched, tracks_failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.UserID, string(record.SourcePlatform), string(record.DestinationPlatform),
		record.SourcePlaylistID, record.DestinationPlaylistID, string(record.Status),
		record.TracksTotal, record.TracksMatched, record.TracksFailed, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// ListTransfers returns the user's transfers newest first. A limit <= 0 returns all of them.
func (r *TransferRepository) ListTransfers(ctx context.Context, userID string, limit int) ([]models.TransferRecord, error) {
	query := `
		SELECT id, user_id, source_platform, destination_platform, source_playlist_id,
			destination_playlist_id, status, tracks_total, tracks_matched, tracks_failed, created_at
		FROM transfers
		WHERE user_id = ?
		ORDER BY created_at DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var records []models.TransferRecord
	for rows.Next() {
		var rec models.TransferRecord
		var src, dst, status string
		if err := rows.Scan(&rec.ID, &rec.UserID, &src, &dst, &rec.SourcePlaylistID, &rec.DestinationPlaylistID,
			&status, &rec.TracksTotal, &rec.TracksMatched, &rec.TracksFailed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		rec.SourcePlatform = models.Platform(src)
		rec.DestinationPlatform = models.Platform(dst)
		rec.Status = models.TransferStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func prepareTransfer(record *models.TransferRecord) {
	if record.ID == "" {
		record.ID = shared.GenerateID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.TransferCompleted
	}
}
