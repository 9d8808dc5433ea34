package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/crossfade/internal/metrics"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// GuardOptions configures a [Guard].
type GuardOptions struct {
	// Timeout bounds each single-request operation (search, track details, create playlist).
	Timeout time.Duration
	// RequestsPerSecond and Burst throttle every operation; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	// Failures is the number of consecutive failures that opens the breaker, Cooldown how long it stays open.
	Failures uint32
	Cooldown time.Duration
	Logger   *log.Logger
}

// Guard wraps a [Service] with a rate limiter, a circuit breaker and per-call deadlines.
//
// Timeouts and breaker rejections are ordinary errors, so callers treat them like any other failed
// call. Authorization, not-found and unsupported errors do not count against the breaker.
type Guard struct {
	inner   Service
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	timeout time.Duration
	logger  *log.Logger
}

var _ Service = (*Guard)(nil)

// NewGuard creates a new Guard around inner
func NewGuard(inner Service, opts GuardOptions) *Guard {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Failures == 0 {
		opts.Failures = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}

	platform := string(inner.Platform())
	logger := shared.WithLogger(opts.Logger, "guard", platform)

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    platform,
		Timeout: opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, shared.ErrAuthRequired) ||
				errors.Is(err, shared.ErrTrackNotFound) ||
				errors.Is(err, shared.ErrPlaylistNotFound) ||
				errors.Is(err, shared.ErrUnsupported) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Guard{inner: inner, limiter: limiter, breaker: breaker, timeout: opts.Timeout, logger: logger}
}

// Unwrap returns the guarded service.
func (g *Guard) Unwrap() Service { return g.inner }

func (g *Guard) Platform() models.Platform { return g.inner.Platform() }

// Name returns the name of the guarded service
func (g *Guard) Name() string { return g.inner.Name() }

func (g *Guard) Search(ctx context.Context, token, query string, limit int) ([]models.Track, error) {
	return guarded(ctx, g, "search", true, func(ctx context.Context) ([]models.Track, error) {
		return g.inner.Search(ctx, token, query, limit)
	})
}

func (g *Guard) TrackDetails(ctx context.Context, token, id string) (*models.Track, error) {
	return guarded(ctx, g, "track", true, func(ctx context.Context) (*models.Track, error) {
		return g.inner.TrackDetails(ctx, token, id)
	})
}

// GetPlaylist spans several requests; each is bounded by the HTTP client timeout rather than one deadline.
func (g *Guard) GetPlaylist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	return guarded(ctx, g, "playlist", false, func(ctx context.Context) (*models.Playlist, error) {
		return g.inner.GetPlaylist(ctx, token, playlistID)
	})
}

func (g *Guard) CreatePlaylist(ctx context.Context, token, name string, public bool) (string, error) {
	return guarded(ctx, g, "create", true, func(ctx context.Context) (string, error) {
		return g.inner.CreatePlaylist(ctx, token, name, public)
	})
}

// AddTracks spans several requests, like GetPlaylist.
func (g *Guard) AddTracks(ctx context.Context, token, playlistID string, trackIDs []string) (*AddResult, error) {
	return guarded(ctx, g, "add", false, func(ctx context.Context) (*AddResult, error) {
		return g.inner.AddTracks(ctx, token, playlistID, trackIDs)
	})
}

func guarded[T any](ctx context.Context, g *Guard, op string, deadline bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	platform := string(g.inner.Platform())

	if err := g.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	if deadline && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	metrics.PlatformCallDuration.WithLabelValues(platform, op).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.PlatformCalls.WithLabelValues(platform, op, "rejected").Inc()
		return zero, fmt.Errorf("%w: %s %s: %w", shared.ErrServiceUnavailable, platform, op, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, shared.ErrTimeout):
		metrics.PlatformCalls.WithLabelValues(platform, op, "timeout").Inc()
		if errors.Is(err, shared.ErrTimeout) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s %s: %w", shared.ErrTimeout, platform, op, err)
	case err != nil:
		metrics.PlatformCalls.WithLabelValues(platform, op, "error").Inc()
		return zero, err
	}

	res, _ := v.(T)
	if tracks, ok := v.([]models.Track); ok && len(tracks) == 0 {
		metrics.PlatformCalls.WithLabelValues(platform, op, "empty").Inc()
	} else {
		metrics.PlatformCalls.WithLabelValues(platform, op, "ok").Inc()
	}
	return res, nil
}
