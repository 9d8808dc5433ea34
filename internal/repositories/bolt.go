package repositories

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

var (
	matchesBucket   = []byte("track_matches")
	transfersBucket = []byte("transfers")
	tokensBucket    = []byte("refresh_tokens")
)

// BoltStore implements [MatchStore], [TransferStore] and [TokenStore] on a single bbolt file.
//
// Values are JSON documents. Transfer keys are "<user>\x00<created unix nano>\x00<id>" so a prefix scan
// yields one user's records in chronological order.
type BoltStore struct {
	db *bolt.DB
}

type boltMatch struct {
	DestinationTrackID string    `json:"destination_track_id"`
	DestinationName    string    `json:"destination_name"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewBoltStore opens (or creates) the bbolt file at path and ensures its buckets exist.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{matchesBucket, transfersBucket, tokensBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func matchKey(src, dst models.Platform, sourceID string) []byte {
	return []byte(string(src) + "\x00" + string(dst) + "\x00" + sourceID)
}

// FindMatch implements [MatchStore].
func (s *BoltStore) FindMatch(_ context.Context, src, dst models.Platform, sourceID string) (*models.CachedMatch, error) {
	var found *models.CachedMatch
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(matchesBucket).Get(matchKey(src, dst, sourceID))
		if raw == nil {
			return nil
		}
		var v boltMatch
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		found = &models.CachedMatch{
			SourcePlatform:      src,
			DestinationPlatform: dst,
			SourceTrackID:       sourceID,
			DestinationTrackID:  v.DestinationTrackID,
			DestinationName:     v.DestinationName,
			UpdatedAt:           v.UpdatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	return found, nil
}

// SaveMatches implements [MatchStore]. The whole batch is one bbolt write transaction.
func (s *BoltStore) SaveMatches(_ context.Context, matches []models.CachedMatch) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(matchesBucket)
		for _, m := range matches {
			if m.SourceTrackID == "" {
				continue
			}
			key := matchKey(m.SourcePlatform, m.DestinationPlatform, m.SourceTrackID)
			v := boltMatch{DestinationTrackID: m.DestinationTrackID, DestinationName: m.DestinationName, UpdatedAt: now}

			if v.DestinationTrackID == "" {
				if raw := b.Get(key); raw != nil {
					var prev boltMatch
					if err := json.Unmarshal(raw, &prev); err == nil && prev.DestinationTrackID != "" {
						v.DestinationTrackID = prev.DestinationTrackID
						v.DestinationName = prev.DestinationName
					}
				}
			}

			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save matches: %w", err)
	}
	return nil
}

func transferKey(r *models.TransferRecord) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d\x00%s", r.UserID, r.CreatedAt.UnixNano(), r.ID))
}

// CreateTransfer implements [TransferStore].
func (s *BoltStore) CreateTransfer(_ context.Context, record *models.TransferRecord) error {
	prepareTransfer(record)
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode transfer: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(transfersBucket).Put(transferKey(record), data)
	})
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// ListTransfers implements [TransferStore].
func (s *BoltStore) ListTransfers(_ context.Context, userID string, limit int) ([]models.TransferRecord, error) {
	prefix := []byte(userID + "\x00")
	var records []models.TransferRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(transfersBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec models.TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func tokenKey(userID string, platform models.Platform) []byte {
	return []byte(userID + "\x00" + string(platform))
}

// RefreshToken implements [TokenStore].
func (s *BoltStore) RefreshToken(_ context.Context, userID string, platform models.Platform) (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(tokensBucket).Get(tokenKey(userID, platform))
		if raw == nil {
			return nil
		}
		var v models.RefreshToken
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		token = v.Token
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	if token == "" {
		return "", shared.ErrNoRefreshToken
	}
	return token, nil
}

// SaveRefreshToken implements [TokenStore].
func (s *BoltStore) SaveRefreshToken(_ context.Context, userID string, platform models.Platform, token string) error {
	data, err := json.Marshal(models.RefreshToken{
		UserID:    userID,
		Platform:  platform,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Put(tokenKey(userID, platform), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}
