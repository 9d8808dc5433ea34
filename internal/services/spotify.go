// Spotify implementation of [Service] on top of github.com/zmb3/spotify/v2
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// spotifyMaxBatch is the largest number of tracks a single add request accepts.
	spotifyMaxBatch = 100
)

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	APIURL     string
	BatchSize  int
	BatchDelay time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// SpotifyService talks to the Spotify Web API with a per-call bearer token.
type SpotifyService struct {
	apiURL     string
	batchSize  int
	batchDelay time.Duration
	http       *http.Client
	logger     *log.Logger
}

// NewSpotifyService creates a new SpotifyService. Zero options fall back to the public API and
// batches of 100.
func NewSpotifyService(opts SpotifyOptions) *SpotifyService {
	if opts.APIURL == "" {
		opts.APIURL = spotifyBaseURL
	}
	if opts.BatchSize <= 0 || opts.BatchSize > spotifyMaxBatch {
		opts.BatchSize = spotifyMaxBatch
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SpotifyService{
		apiURL:     strings.TrimSuffix(opts.APIURL, "/") + "/",
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		http:       opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "service", "spotify"),
	}
}

func (s *SpotifyService) Platform() models.Platform { return models.PlatformSpotify }

// Name returns the name of the service
func (s *SpotifyService) Name() string { return "Spotify" }

func (s *SpotifyService) client(ctx context.Context, token string) *spotify.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	return spotify.New(hc, spotify.WithBaseURL(s.apiURL))
}

// Search runs a track search.
func (s *SpotifyService) Search(ctx context.Context, token, query string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 1
	}

	res, err := s.client(ctx, token).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, s.wrap("search", err)
	}

	tracks := []models.Track{}
	if res == nil || res.Tracks == nil {
		return tracks, nil
	}
	for i := range res.Tracks.Tracks {
		if len(tracks) == limit {
			break
		}
		tracks = append(tracks, convertFullTrack(&res.Tracks.Tracks[i]))
	}
	return tracks, nil
}

// TrackDetails fetches one catalog track.
func (s *SpotifyService) TrackDetails(ctx context.Context, token, id string) (*models.Track, error) {
	ft, err := s.client(ctx, token).GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, s.wrap("get track", err)
	}
	t := convertFullTrack(ft)
	return &t, nil
}

// GetPlaylist fetches the playlist and pages through its items.
func (s *SpotifyService) GetPlaylist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	c := s.client(ctx, token)

	pl, err := c.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, s.wrap("get playlist", err)
	}

	playlist := &models.Playlist{ID: pl.ID.String(), Name: pl.Name, Public: pl.IsPublic, Tracks: []models.Track{}}
	if len(pl.Images) > 0 {
		playlist.ImageURL = pl.Images[0].URL
	}

	page, err := c.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(100))
	if err != nil {
		return nil, s.wrap("get playlist items", err)
	}

	for {
		for _, item := range page.Items {
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, convertFullTrack(item.Track.Track))
		}

		err := c.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, s.wrap("get playlist items", err)
		}
	}

	s.logger.Debug("fetched playlist", "id", playlistID, "tracks", len(playlist.Tracks))
	return playlist, nil
}

// CreatePlaylist creates a playlist for the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, token, name string, public bool) (string, error) {
	c := s.client(ctx, token)

	user, err := c.CurrentUser(ctx)
	if err != nil {
		return "", s.wrap("get current user", err)
	}

	pl, err := c.CreatePlaylistForUser(ctx, user.ID, name, "", public, false)
	if err != nil {
		return "", s.wrap("create playlist", err)
	}
	return pl.ID.String(), nil
}

// AddTracks adds tracks in batches of at most 100 with a fixed delay between batches.
// A failed batch is logged and its ids reported; the remaining batches still run.
func (s *SpotifyService) AddTracks(ctx context.Context, token, playlistID string, trackIDs []string) (*AddResult, error) {
	c := s.client(ctx, token)
	spacer := newSpacer(s.batchDelay)
	result := &AddResult{}

	for start := 0; start < len(trackIDs); start += s.batchSize {
		end := min(start+s.batchSize, len(trackIDs))
		batch := trackIDs[start:end]

		if err := spacer.Wait(ctx); err != nil {
			result.Failed = append(result.Failed, trackIDs[start:]...)
			return result, err
		}

		ids := make([]spotify.ID, len(batch))
		for i, id := range batch {
			ids[i] = spotify.ID(id)
		}

		if _, err := c.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
			s.logger.Warn("failed to add batch", "playlist", playlistID, "offset", start, "size", len(batch), "error", err)
			result.Failed = append(result.Failed, batch...)
			continue
		}
		result.Added += len(batch)
	}

	return result, nil
}

// wrap classifies a client error: rejected tokens require re-authorization, everything else is a failed
// API request.
func (s *SpotifyService) wrap(op string, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		if se.Status == http.StatusUnauthorized {
			return shared.NewAuthRequired(string(models.PlatformSpotify), err)
		}
		if se.Status == http.StatusNotFound {
			return fmt.Errorf("%w: spotify %s: %w", shared.ErrTrackNotFound, op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: spotify %s: %w", shared.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: spotify %s: %w", shared.ErrAPIRequest, op, err)
}

func convertFullTrack(ft *spotify.FullTrack) models.Track {
	native := models.SpotifyTrack{ID: ft.ID.String(), Name: ft.Name, Album: ft.Album.Name}
	for _, a := range ft.Artists {
		native.Artists = append(native.Artists, models.SpotifyArtist{ID: a.ID.String(), Name: a.Name})
	}
	return native.ToTrack()
}
