package tasks

import (
	"strings"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const defaultDescriptionWords = 5

// Strategy builds one search query from a source track. An empty query is skipped.
type Strategy func(models.Track) string

// Pipeline describes how tracks move in one direction between two platforms.
type Pipeline struct {
	Source      models.Platform
	Destination models.Platform
	// Strategies run most specific first.
	Strategies []Strategy
	// Prepare, when set, normalizes a source track before queries are built.
	Prepare func(models.Track) models.Track
}

type pipelineKey struct {
	src, dst models.Platform
}

// Registry holds the pipeline for each supported (source, destination) pair.
type Registry struct {
	pipelines map[pipelineKey]Pipeline
}

// NewRegistry creates a new Registry with the built-in pipelines registered.
// descriptionWords is how many description words the last video strategy appends; zero means 5.
func NewRegistry(descriptionWords int) *Registry {
	if descriptionWords <= 0 {
		descriptionWords = defaultDescriptionWords
	}

	r := &Registry{pipelines: map[pipelineKey]Pipeline{}}
	r.Register(Pipeline{
		Source:      models.PlatformSpotify,
		Destination: models.PlatformYouTube,
		Strategies:  catalogStrategies(),
	})
	r.Register(Pipeline{
		Source:      models.PlatformYouTube,
		Destination: models.PlatformSpotify,
		Strategies:  videoStrategies(descriptionWords),
	})
	r.Register(Pipeline{
		Source:      models.PlatformText,
		Destination: models.PlatformYouTube,
		Strategies:  catalogStrategies(),
		Prepare:     prepareTyped,
	})
	r.Register(Pipeline{
		Source:      models.PlatformText,
		Destination: models.PlatformSpotify,
		Strategies:  catalogStrategies(),
		Prepare:     prepareTyped,
	})
	return r
}

// Register adds or replaces the pipeline for its pair.
func (r *Registry) Register(p Pipeline) {
	r.pipelines[pipelineKey{p.Source, p.Destination}] = p
}

// Lookup returns the pipeline for the pair.
func (r *Registry) Lookup(src, dst models.Platform) (Pipeline, bool) {
	p, ok := r.pipelines[pipelineKey{src, dst}]
	return p, ok
}

// catalogStrategies query by "name primary-artist", then by name alone.
func catalogStrategies() []Strategy {
	return []Strategy{
		func(t models.Track) string { return joinQuery(t.Name, t.PrimaryArtist()) },
		func(t models.Track) string { return joinQuery(t.Name) },
	}
}

// videoStrategies strip video noise from titles and channels before querying a catalog.
func videoStrategies(descriptionWords int) []Strategy {
	return []Strategy{
		func(t models.Track) string {
			return joinQuery(shared.CleanTitle(t.Name), shared.CleanChannel(t.PrimaryArtist()))
		},
		func(t models.Track) string { return joinQuery(shared.CleanTitle(t.Name)) },
		func(t models.Track) string {
			words := shared.FirstWords(t.Description, descriptionWords)
			if words == "" {
				return ""
			}
			return joinQuery(shared.CleanTitle(t.Name), words)
		},
	}
}

// prepareTyped cleans hand-typed lines. A line that was never split on " - " is split here.
func prepareTyped(t models.Track) models.Track {
	if len(t.Artists) == 0 {
		artist, title := shared.ParseTypedTrack(t.Name)
		t.Name = title
		if artist != "" {
			t.Artists = []string{artist}
		}
	}

	t.Name = shared.CleanTitle(t.Name)
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a = strings.TrimSpace(a); a != "" {
			artists = append(artists, a)
		}
	}
	t.Artists = artists
	return t
}

func joinQuery(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
