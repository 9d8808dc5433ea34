// package services adapts music platforms, OAuth token refresh and the AI completion endpoint
// behind small interfaces the transfer pipeline depends on.
//
// Every platform implements [Service]. Spotify is catalog style, YouTube is video (feed) style and
// [TextService] is the plain-text pseudo-platform used for imports and exports.
package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/crossfade/internal/models"
)

// Service is the single capability interface every platform implements.
//
// Search distinguishes "nothing found" (an empty, non-nil slice and a nil error) from a failed call (a
// non-nil error). Non-2xx responses surface as errors wrapping [shared.ErrAPIRequest], or
// [shared.ErrAuthRequired] for rejected tokens.
type Service interface {
	Platform() models.Platform

	// Name returns the display name of the service (e.g., "Spotify")
	Name() string

	// Search returns at most limit tracks for a free-text query.
	Search(ctx context.Context, token, query string, limit int) ([]models.Track, error)

	// TrackDetails fetches a single track or video by id.
	TrackDetails(ctx context.Context, token, id string) (*models.Track, error)

	// GetPlaylist fetches playlist metadata and every track, following pagination sequentially.
	GetPlaylist(ctx context.Context, token, playlistID string) (*models.Playlist, error)

	// CreatePlaylist creates an empty playlist owned by the token's user and returns its id.
	CreatePlaylist(ctx context.Context, token, name string, public bool) (string, error)

	// AddTracks appends tracks in order. Individual failures are collected in the result rather than
	// aborting the remaining work.
	AddTracks(ctx context.Context, token, playlistID string, trackIDs []string) (*AddResult, error)
}

// AddResult summarizes a best-effort insertion.
type AddResult struct {
	Added  int
	Failed []string
}

// TokenProvider yields a valid access token for a user on one platform.
type TokenProvider interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// newSpacer returns a limiter that lets one call through immediately and then one per interval.
func newSpacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
