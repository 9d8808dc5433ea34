package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// TextService is the plain-text pseudo-platform. It has no remote API: a "playlist" is typed text and
// nothing can be searched or written.
type TextService struct{}

// NewTextService creates a new TextService
func NewTextService() *TextService { return &TextService{} }

func (TextService) Platform() models.Platform { return models.PlatformText }

// Name returns the name of the service
func (TextService) Name() string { return "Plain text" }

func (TextService) Search(context.Context, string, string, int) ([]models.Track, error) {
	return nil, fmt.Errorf("%w: search on plain text", shared.ErrUnsupported)
}

func (TextService) TrackDetails(context.Context, string, string) (*models.Track, error) {
	return nil, fmt.Errorf("%w: track details on plain text", shared.ErrUnsupported)
}

// GetPlaylist parses body as typed playlist text (see [formatter.ParseText]).
func (TextService) GetPlaylist(_ context.Context, _ string, body string) (*models.Playlist, error) {
	playlist := formatter.ParseText([]byte(body))
	if len(playlist.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks in text", shared.ErrInvalidInput)
	}
	return playlist, nil
}

func (TextService) CreatePlaylist(context.Context, string, string, bool) (string, error) {
	return "", fmt.Errorf("%w: create playlist on plain text", shared.ErrUnsupported)
}

func (TextService) AddTracks(context.Context, string, string, []string) (*AddResult, error) {
	return nil, fmt.Errorf("%w: add tracks on plain text", shared.ErrUnsupported)
}
