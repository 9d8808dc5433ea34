package repositories

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"

	"github.com/desertthunder/crossfade/internal/models"
)

// MappingCache answers "has this source track been mapped to the destination platform before?"
//
// Learned pairings are held in memory (no expiry) in front of a [MatchStore]. Lookups never fail:
// storage errors are logged and reported as a miss. Only [MappingCache.SaveMatches] writes.
type MappingCache struct {
	store  MatchStore
	mem    *cache.Cache
	logger *log.Logger
}

// NewMappingCache creates a new MappingCache backed by store
func NewMappingCache(store MatchStore, logger *log.Logger) *MappingCache {
	return &MappingCache{
		store:  store,
		mem:    cache.New(cache.NoExpiration, 10*time.Minute),
		logger: logger,
	}
}

func memKey(src, dst models.Platform, sourceID string) string {
	return string(matchKey(src, dst, sourceID))
}

// Lookup returns the learned destination track id for the source track.
// Rows recording a reviewed miss count as a miss.
func (c *MappingCache) Lookup(ctx context.Context, src, dst models.Platform, sourceID string) (string, bool) {
	if sourceID == "" {
		return "", false
	}

	key := memKey(src, dst, sourceID)
	if v, ok := c.mem.Get(key); ok {
		return v.(string), true
	}

	m, err := c.store.FindMatch(ctx, src, dst, sourceID)
	if err != nil {
		c.logger.Warn("mapping cache lookup failed, treating as miss", "source", src, "destination", dst, "track", sourceID, "error", err)
		return "", false
	}
	if m == nil || m.DestinationTrackID == "" {
		return "", false
	}

	c.mem.Set(key, m.DestinationTrackID, cache.NoExpiration)
	return m.DestinationTrackID, true
}

// SaveMatches persists every row in one transaction and, on success, refreshes the memory layer.
func (c *MappingCache) SaveMatches(ctx context.Context, matches []models.CachedMatch) error {
	if err := c.store.SaveMatches(ctx, matches); err != nil {
		return err
	}
	for _, m := range matches {
		if m.SourceTrackID == "" || m.DestinationTrackID == "" {
			continue
		}
		c.mem.Set(memKey(m.SourcePlatform, m.DestinationPlatform, m.SourceTrackID), m.DestinationTrackID, cache.NoExpiration)
	}
	return nil
}

// Len reports how many pairings are held in memory.
func (c *MappingCache) Len() int {
	return c.mem.ItemCount()
}
