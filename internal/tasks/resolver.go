package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kkdai/youtube/v2"

	"github.com/desertthunder/crossfade/internal/metrics"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

const resolverSystemPrompt = "You identify songs across music streaming services. " +
	"Answer with exactly what is asked for and nothing else."

var youtubeURL = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.|m\.|music\.)?(?:youtube\.com|youtu\.be)/[^\s"'<>)\]]+`)

// AIResolver is the last rung of the matching ladder: it asks a completion model for the track and
// resolves the answer on the destination platform. It never fails; anything unusable is a miss.
type AIResolver struct {
	client           services.CompletionClient
	descriptionWords int
	logger           *log.Logger
}

// NewAIResolver creates a new AIResolver
func NewAIResolver(client services.CompletionClient, descriptionWords int, logger *log.Logger) *AIResolver {
	if descriptionWords <= 0 {
		descriptionWords = defaultDescriptionWords
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AIResolver{client: client, descriptionWords: descriptionWords, logger: shared.WithLogger(logger, "stage", "ai")}
}

// Prompt describes the source track and asks for an answer shaped for dst: a video URL for video
// platforms, otherwise a search query.
func (r *AIResolver) Prompt(src, dst models.Platform, t models.Track) string {
	var b strings.Builder

	if src.IsVideo() {
		fmt.Fprintf(&b, "Identify the song in this %s video.\n", src.DisplayName())
		fmt.Fprintf(&b, "Title: %s\n", shared.CleanTitle(t.Name))
		if channel := shared.CleanChannel(t.PrimaryArtist()); channel != "" {
			fmt.Fprintf(&b, "Channel: %s\n", channel)
		}
		if words := shared.FirstWords(t.Description, r.descriptionWords); words != "" {
			fmt.Fprintf(&b, "Description starts with: %s\n", words)
		}
	} else {
		fmt.Fprintf(&b, "Song: %s\n", t.Name)
		if len(t.Artists) > 0 {
			fmt.Fprintf(&b, "Artists: %s\n", strings.Join(t.Artists, ", "))
		}
		if t.Album != "" {
			fmt.Fprintf(&b, "Album: %s\n", t.Album)
		}
	}

	if dst.IsVideo() {
		fmt.Fprintf(&b, "Reply with the %s URL of the official music video or audio for this song.", dst.DisplayName())
	} else {
		fmt.Fprintf(&b, "Reply with the song title followed by the primary artist, suitable as a %s search query.", dst.DisplayName())
	}
	return b.String()
}

// Resolve sends prompt and looks the answer up on dest.
func (r *AIResolver) Resolve(ctx context.Context, prompt string, dest services.Service, token string) *models.Track {
	answer, err := r.client.Complete(ctx, resolverSystemPrompt, prompt)
	if err != nil {
		metrics.AIRequests.WithLabelValues("error").Inc()
		r.logger.Warn("completion failed", "error", err)
		return nil
	}
	if answer == "" {
		metrics.AIRequests.WithLabelValues("empty").Inc()
		return nil
	}

	var found *models.Track
	if dest.Platform().IsVideo() {
		found = r.resolveVideo(ctx, answer, dest, token)
	} else {
		found = r.resolveQuery(ctx, answer, dest, token)
	}

	if found == nil {
		metrics.AIRequests.WithLabelValues("unresolved").Inc()
		return nil
	}
	metrics.AIRequests.WithLabelValues("ok").Inc()
	return found
}

func (r *AIResolver) resolveVideo(ctx context.Context, answer string, dest services.Service, token string) *models.Track {
	url := youtubeURL.FindString(answer)
	if url == "" {
		r.logger.Debug("answer has no video url", "answer", answer)
		return nil
	}

	id, err := youtube.ExtractVideoID(strings.TrimRight(url, ".,;:!?"))
	if err != nil {
		r.logger.Debug("could not extract video id", "url", url, "error", err)
		return nil
	}

	track, err := dest.TrackDetails(ctx, token, id)
	if err != nil {
		r.logger.Warn("suggested video lookup failed", "video", id, "error", err)
		return nil
	}
	return track
}

func (r *AIResolver) resolveQuery(ctx context.Context, answer string, dest services.Service, token string) *models.Track {
	query := strings.Trim(strings.TrimSpace(answer), `"'`)
	results, err := dest.Search(ctx, token, query, 1)
	if err != nil {
		r.logger.Warn("suggested query search failed", "query", query, "error", err)
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}
