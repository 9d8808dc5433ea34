package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/desertthunder/crossfade/internal/metrics"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

const defaultMaxConcurrency = 8

// MappingLookup answers cache lookups for learned pairings.
type MappingLookup interface {
	Lookup(ctx context.Context, src, dst models.Platform, sourceID string) (string, bool)
}

// Matcher runs the matching ladder for each track of a playlist.
type Matcher struct {
	cache       MappingLookup
	resolver    *AIResolver
	concurrency int64
	logger      *log.Logger
}

// NewMatcher creates a new Matcher. cache and resolver may be nil to skip those rungs.
func NewMatcher(cache MappingLookup, resolver *AIResolver, concurrency int, logger *log.Logger) *Matcher {
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Matcher{
		cache:       cache,
		resolver:    resolver,
		concurrency: int64(concurrency),
		logger:      shared.WithLogger(logger, "component", "matcher"),
	}
}

// MatchAll maps every track and returns mappings in playlist order.
//
// Unmatched tracks have a nil destination. The first authorization failure or cancellation stops
// the remaining work and is returned.
func (m *Matcher) MatchAll(ctx context.Context, p Pipeline, dest services.Service, token string, tracks []models.Track, progress chan<- ProgressUpdate) ([]models.Mapping, error) {
	mappings := make([]models.Mapping, len(tracks))
	sem := semaphore.NewWeighted(m.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	var done atomic.Int64
	total := len(tracks)

	for i, track := range tracks {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			mapping, err := m.matchSafely(gctx, p, dest, token, track)
			if err != nil {
				return err
			}
			mappings[i] = mapping
			sendProgress(progress, matchTrackUpdate(int(done.Add(1)), total, mapping))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// matchSafely turns a panic anywhere in the ladder into an unmatched track.
func (m *Matcher) matchSafely(ctx context.Context, p Pipeline, dest services.Service, token string, track models.Track) (mapping models.Mapping, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("recovered panic while matching", "track", track.Label(), "panic", fmt.Sprint(r))
			metrics.MatchOutcomes.WithLabelValues(string(p.Source), string(p.Destination), string(models.StageNone)).Inc()
			mapping, err = models.Mapping{SourceTrack: track, Stage: models.StageNone}, nil
		}
	}()
	return m.Match(ctx, p, dest, token, track)
}

// Match runs the ladder for one track: cache, then each direct strategy, then the AI fallback.
func (m *Matcher) Match(ctx context.Context, p Pipeline, dest services.Service, token string, track models.Track) (models.Mapping, error) {
	mapping := models.Mapping{SourceTrack: track, Stage: models.StageNone}
	prepared := track
	if p.Prepare != nil {
		prepared = p.Prepare(track)
	}

	if track.ID != "" && m.cache != nil {
		if destID, ok := m.cache.Lookup(ctx, p.Source, p.Destination, track.ID); ok {
			found, err := dest.TrackDetails(ctx, token, destID)
			switch {
			case err == nil:
				return m.matched(p, mapping, found, models.StageCache), nil
			case aborts(ctx, err):
				return mapping, err
			case errors.Is(err, shared.ErrTrackNotFound):
				m.logger.Info("cached track is gone, searching again", "track", track.Label(), "destination", destID)
			default:
				m.logger.Warn("cached track lookup failed, keeping cached id", "track", track.Label(), "destination", destID, "error", err)
				found = &models.Track{ID: destID, Name: track.Name, Artists: track.Artists}
				return m.matched(p, mapping, found, models.StageCache), nil
			}
		}
	}

	tried := map[string]bool{}
	for _, strategy := range p.Strategies {
		query := strategy(prepared)
		if query == "" || tried[query] {
			continue
		}
		tried[query] = true

		results, err := dest.Search(ctx, token, query, 1)
		if err != nil {
			if aborts(ctx, err) {
				return mapping, err
			}
			m.logger.Warn("search failed, trying next strategy", "query", query, "destination", p.Destination, "error", err)
			continue
		}
		if len(results) > 0 {
			return m.matched(p, mapping, &results[0], models.StageSearch), nil
		}
	}

	if m.resolver != nil {
		prompt := m.resolver.Prompt(p.Source, p.Destination, prepared)
		if found := m.resolver.Resolve(ctx, prompt, dest, token); found != nil {
			return m.matched(p, mapping, found, models.StageAI), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return mapping, err
	}

	metrics.MatchOutcomes.WithLabelValues(string(p.Source), string(p.Destination), string(models.StageNone)).Inc()
	m.logger.Debug("no match", "track", track.Label())
	return mapping, nil
}

func (m *Matcher) matched(p Pipeline, mapping models.Mapping, found *models.Track, stage models.MatchStage) models.Mapping {
	metrics.MatchOutcomes.WithLabelValues(string(p.Source), string(p.Destination), string(stage)).Inc()
	mapping.DestinationTrack = found
	mapping.Stage = stage
	mapping.Confidence = titleConfidence(mapping.SourceTrack.Name, found.Name)
	return mapping
}

// aborts reports whether err ends the whole proposal rather than one rung.
func aborts(ctx context.Context, err error) bool {
	return errors.Is(err, shared.ErrAuthRequired) || ctx.Err() != nil
}

// titleConfidence scores cleaned title similarity in [0, 1].
func titleConfidence(a, b string) float64 {
	a = strings.ToLower(shared.CleanTitle(a))
	b = strings.ToLower(shared.CleanTitle(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	score := 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
	return max(score, 0)
}
