// YouTube implementation of [Service] on top of the YouTube Data API v3
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const (
	youtubeAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	youtubeTokenURL = "https://oauth2.googleapis.com/token"
	youtubeBaseURL  = "https://youtube.googleapis.com/"

	// youtubeMusicCategory restricts searches to the Music video category.
	youtubeMusicCategory = "10"
	youtubePageSize      = 50
)

// YouTubeOptions configures a [YouTubeService].
type YouTubeOptions struct {
	APIURL      string
	InsertDelay time.Duration
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// YouTubeService talks to the YouTube Data API with a per-call bearer token.
type YouTubeService struct {
	apiURL      string
	insertDelay time.Duration
	http        *http.Client
	logger      *log.Logger
}

// NewYouTubeService creates a new YouTubeService
func NewYouTubeService(opts YouTubeOptions) *YouTubeService {
	if opts.APIURL == "" {
		opts.APIURL = youtubeBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &YouTubeService{
		apiURL:      strings.TrimSuffix(opts.APIURL, "/") + "/",
		insertDelay: opts.InsertDelay,
		http:        opts.HTTPClient,
		logger:      shared.WithLogger(opts.Logger, "service", "youtube"),
	}
}

func (y *YouTubeService) Platform() models.Platform { return models.PlatformYouTube }

// Name returns the name of the service
func (y *YouTubeService) Name() string { return "YouTube" }

func (y *YouTubeService) client(ctx context.Context, token string) (*youtube.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, y.http)
	hc := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(hc), option.WithEndpoint(y.apiURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return svc, nil
}

// Search looks up music videos.
func (y *YouTubeService) Search(ctx context.Context, token, query string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 1
	}
	svc, err := y.client(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoCategoryId(youtubeMusicCategory).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, y.wrap("search", err)
	}

	tracks := []models.Track{}
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		tracks = append(tracks, models.YoutubeTrack{
			VideoID:      item.Id.VideoId,
			Title:        html.UnescapeString(item.Snippet.Title),
			ChannelTitle: html.UnescapeString(item.Snippet.ChannelTitle),
			ChannelID:    item.Snippet.ChannelId,
			Description:  html.UnescapeString(item.Snippet.Description),
		}.ToTrack())
		if len(tracks) == limit {
			break
		}
	}
	return tracks, nil
}

// TrackDetails fetches one video.
func (y *YouTubeService) TrackDetails(ctx context.Context, token, id string) (*models.Track, error) {
	svc, err := y.client(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Videos.List([]string{"snippet"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, y.wrap("get video", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, fmt.Errorf("%w: youtube video %s", shared.ErrTrackNotFound, id)
	}

	v := resp.Items[0]
	t := models.YoutubeTrack{
		VideoID:      v.Id,
		Title:        v.Snippet.Title,
		ChannelTitle: v.Snippet.ChannelTitle,
		ChannelID:    v.Snippet.ChannelId,
		Description:  v.Snippet.Description,
	}.ToTrack()
	return &t, nil
}

// GetPlaylist fetches playlist metadata and pages through its items with page tokens.
// Deleted and private videos are skipped.
func (y *YouTubeService) GetPlaylist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	svc, err := y.client(ctx, token)
	if err != nil {
		return nil, err
	}

	meta, err := svc.Playlists.List([]string{"snippet", "status"}).Id(playlistID).Context(ctx).Do()
	if err != nil {
		return nil, y.wrap("get playlist", err)
	}
	if len(meta.Items) == 0 {
		return nil, fmt.Errorf("%w: youtube playlist %s", shared.ErrPlaylistNotFound, playlistID)
	}

	pl := meta.Items[0]
	playlist := &models.Playlist{ID: pl.Id, Tracks: []models.Track{}}
	if pl.Snippet != nil {
		playlist.Name = pl.Snippet.Title
		if th := pl.Snippet.Thumbnails; th != nil {
			for _, t := range []*youtube.Thumbnail{th.High, th.Medium, th.Default} {
				if t != nil && t.Url != "" {
					playlist.ImageURL = t.Url
					break
				}
			}
		}
	}
	if pl.Status != nil {
		playlist.Public = pl.Status.PrivacyStatus == "public"
	}

	pageToken := ""
	for {
		call := svc.PlaylistItems.List([]string{"snippet"}).PlaylistId(playlistID).MaxResults(youtubePageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, y.wrap("get playlist items", err)
		}

		for _, item := range page.Items {
			sn := item.Snippet
			if sn == nil || sn.ResourceId == nil || sn.ResourceId.VideoId == "" || sn.VideoOwnerChannelTitle == "" {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, models.YoutubeTrack{
				VideoID:      sn.ResourceId.VideoId,
				Title:        sn.Title,
				ChannelTitle: sn.VideoOwnerChannelTitle,
				ChannelID:    sn.VideoOwnerChannelId,
				Description:  sn.Description,
			}.ToTrack())
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	y.logger.Debug("fetched playlist", "id", playlistID, "tracks", len(playlist.Tracks))
	return playlist, nil
}

// CreatePlaylist inserts a new playlist for the authorized channel.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, token, name string, public bool) (string, error) {
	svc, err := y.client(ctx, token)
	if err != nil {
		return "", err
	}

	privacy := "private"
	if public {
		privacy = "public"
	}

	pl, err := svc.Playlists.Insert([]string{"snippet", "status"}, &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: name},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: privacy},
	}).Context(ctx).Do()
	if err != nil {
		return "", y.wrap("create playlist", err)
	}
	return pl.Id, nil
}

// AddTracks inserts videos one at a time, pausing between calls. Failures are collected per video.
func (y *YouTubeService) AddTracks(ctx context.Context, token, playlistID string, trackIDs []string) (*AddResult, error) {
	svc, err := y.client(ctx, token)
	if err != nil {
		return nil, err
	}

	spacer := newSpacer(y.insertDelay)
	result := &AddResult{}

	for i, id := range trackIDs {
		if err := spacer.Wait(ctx); err != nil {
			result.Failed = append(result.Failed, trackIDs[i:]...)
			return result, err
		}

		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: playlistID,
				ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: id},
			},
		}
		if _, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			y.logger.Warn("failed to add video", "playlist", playlistID, "video", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Added++
	}

	return result, nil
}

func (y *YouTubeService) wrap(op string, err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch ge.Code {
		case http.StatusUnauthorized:
			return shared.NewAuthRequired(string(models.PlatformYouTube), err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: youtube %s: %w", shared.ErrTrackNotFound, op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: youtube %s: %w", shared.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: youtube %s: %w", shared.ErrAPIRequest, op, err)
}
