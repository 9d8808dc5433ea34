// package repositories provides the persistence layer for learned track matches, transfer records
// and stored refresh tokens.
//
// Two interchangeable backends exist: SQLite (database/sql + go-sqlite3, the default) and bbolt.
// [Open] selects one from [shared.DatabaseConfig].
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// MatchStore persists learned track pairings.
type MatchStore interface {
	// FindMatch returns the stored row for the key, or (nil, nil) when none exists.
	FindMatch(ctx context.Context, src, dst models.Platform, sourceID string) (*models.CachedMatch, error)
	// SaveMatches writes every row in a single all-or-nothing transaction.
	SaveMatches(ctx context.Context, matches []models.CachedMatch) error
}

// TransferStore persists transfer audit records.
type TransferStore interface {
	CreateTransfer(ctx context.Context, record *models.TransferRecord) error
	ListTransfers(ctx context.Context, userID string, limit int) ([]models.TransferRecord, error)
}

// TokenStore persists OAuth refresh tokens.
type TokenStore interface {
	// RefreshToken returns the stored token or [shared.ErrNoRefreshToken].
	RefreshToken(ctx context.Context, userID string, platform models.Platform) (string, error)
	SaveRefreshToken(ctx context.Context, userID string, platform models.Platform, token string) error
}

// Stores bundles the three stores of one backend.
type Stores struct {
	Matches   MatchStore
	Transfers TransferStore
	Tokens    TokenStore
	closer    io.Closer
}

// Close releases the underlying database handle.
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open opens the configured backend and prepares its schema.
func Open(cfg shared.DatabaseConfig) (*Stores, error) {
	switch cfg.Driver {
	case "bolt":
		bs, err := NewBoltStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Stores{Matches: bs, Transfers: bs, Tokens: bs, closer: bs}, nil
	case "sqlite", "":
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Path != shared.MemoryDSN {
			shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
		}
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return NewSQLiteStores(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

// NewSQLiteStores wraps an already migrated database.
func NewSQLiteStores(db *sql.DB) *Stores {
	return &Stores{
		Matches:   NewMatchRepository(db),
		Transfers: NewTransferRepository(db),
		Tokens:    NewTokenRepository(db),
		closer:    db,
	}
}
