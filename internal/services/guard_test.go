package services_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	th "github.com/desertthunder/crossfade/internal/testing"
)

// stallService blocks searches until the context ends.
type stallService struct {
	*th.MockService
}

func (s stallService) Search(ctx context.Context, _, _ string, _ int) ([]models.Track, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	logger := log.New(io.Discard)

	t.Run("Passes Results Through", func(t *testing.T) {
		mock := th.NewMockService(models.PlatformYouTube)
		mock.SearchResults["Yellow Coldplay"] = []models.Track{{ID: "yt1", Name: "Yellow"}}
		g := services.NewGuard(mock, services.GuardOptions{Logger: logger})

		got, err := g.Search(ctx, "tok", "Yellow Coldplay", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].ID != "yt1" {
			t.Errorf("unexpected results %+v", got)
		}
		if g.Platform() != models.PlatformYouTube || g.Unwrap() != services.Service(mock) {
			t.Error("guard should expose the wrapped service")
		}
	})

	t.Run("Empty Result Is Not An Error", func(t *testing.T) {
		g := services.NewGuard(th.NewMockService(models.PlatformSpotify), services.GuardOptions{Logger: logger})

		got, err := g.Search(ctx, "tok", "nothing", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		g := services.NewGuard(stallService{th.NewMockService(models.PlatformSpotify)}, services.GuardOptions{
			Timeout: 20 * time.Millisecond,
			Logger:  logger,
		})

		start := time.Now()
		_, err := g.Search(ctx, "tok", "slow", 1)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("search should have been cut off by the deadline")
		}
	})

	t.Run("Breaker Opens After Failures", func(t *testing.T) {
		mock := th.NewMockService(models.PlatformSpotify)
		mock.SearchErr = shared.ErrAPIRequest
		g := services.NewGuard(mock, services.GuardOptions{Failures: 2, Cooldown: time.Minute, Logger: logger})

		for range 2 {
			if _, err := g.Search(ctx, "tok", "q", 1); !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
		}

		_, err := g.Search(ctx, "tok", "q", 1)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if mock.QueryCount() != 2 {
			t.Errorf("open breaker should not reach the service, got %d calls", mock.QueryCount())
		}
	})

	t.Run("Auth Errors Do Not Trip Breaker", func(t *testing.T) {
		mock := th.NewMockService(models.PlatformSpotify)
		mock.SearchErr = shared.NewAuthRequired("spotify", errors.New("expired"))
		g := services.NewGuard(mock, services.GuardOptions{Failures: 1, Logger: logger})

		for range 3 {
			if _, err := g.Search(ctx, "tok", "q", 1); !errors.Is(err, shared.ErrAuthRequired) {
				t.Fatalf("expected ErrAuthRequired, got %v", err)
			}
		}
		if mock.QueryCount() != 3 {
			t.Errorf("expected every call to reach the service, got %d", mock.QueryCount())
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		g := services.NewGuard(th.NewMockService(models.PlatformSpotify), services.GuardOptions{
			RequestsPerSecond: 0.001,
			Burst:             1,
			Logger:            logger,
		})
		if _, err := g.Search(ctx, "tok", "first", 1); err != nil {
			t.Fatalf("first call should use the burst, got %v", err)
		}

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := g.Search(cctx, "tok", "second", 1); err == nil {
			t.Error("expected the limiter to fail on a canceled context")
		}
	})
}
