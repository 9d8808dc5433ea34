package formatter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

func samplePlaylist() *models.Playlist {
	return &models.Playlist{
		ID:     "pl1",
		Name:   "Road Trip",
		Public: true,
		Tracks: []models.Track{
			{ID: "t1", Name: "Yellow", Artists: []string{"Coldplay"}, Album: "Parachutes"},
			{ID: "t2", Name: "Instrumental", Artists: []string{}},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToText", func(t *testing.T) {
		out := string(ExportToText(samplePlaylist()))

		if !strings.HasPrefix(out, "# Road Trip\n") {
			t.Errorf("expected header line, got %q", out)
		}
		if !strings.Contains(out, "Coldplay - Yellow\n") {
			t.Errorf("expected artist - title line, got %q", out)
		}
		if !strings.Contains(out, "\nInstrumental\n") {
			t.Errorf("tracks without artists should be title only, got %q", out)
		}
	})

	t.Run("ParseText round trip", func(t *testing.T) {
		parsed := ParseText(ExportToText(samplePlaylist()))

		if parsed.Name != "Road Trip" {
			t.Errorf("expected name Road Trip, got %q", parsed.Name)
		}
		if len(parsed.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(parsed.Tracks))
		}
		if parsed.Tracks[0].Name != "Yellow" || parsed.Tracks[0].PrimaryArtist() != "Coldplay" {
			t.Errorf("unexpected first track %+v", parsed.Tracks[0])
		}
		if parsed.Tracks[0].ID != "" {
			t.Error("parsed tracks must not carry ids")
		}
	})

	t.Run("ParseText numbering and comments", func(t *testing.T) {
		parsed := ParseText([]byte("1. Coldplay - Yellow\n\n# note\n2) Radiohead - Creep\n"))
		if len(parsed.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(parsed.Tracks))
		}
		if parsed.Tracks[1].Name != "Creep" || parsed.Tracks[1].PrimaryArtist() != "Radiohead" {
			t.Errorf("unexpected track %+v", parsed.Tracks[1])
		}
		if parsed.Name != "note" {
			t.Errorf("first comment should name the playlist, got %q", parsed.Name)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		out := string(ExportToMarkdown(samplePlaylist(), models.PlatformSpotify))

		for _, want := range []string{"# Road Trip", "**Platform**: Spotify", "**Tracks**: 2", "**Visibility**: Public", "1. Coldplay - Yellow (Parachutes)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected markdown to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("ExportMappingsCSV", func(t *testing.T) {
		mappings := []models.Mapping{
			{SourceTrack: models.Track{ID: "s1", Name: "Yellow", Artists: []string{"Coldplay"}}, DestinationTrack: &models.Track{ID: "yt1", Name: "Coldplay - Yellow (Official Video)", Artists: []string{"Coldplay"}}, Stage: models.StageSearch, Confidence: 0.5},
			{SourceTrack: models.Track{ID: "s2", Name: "Obscure"}, Stage: models.StageNone},
		}

		data, err := ExportMappingsCSV(mappings)
		if err != nil {
			t.Fatalf("failed to export: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d", len(lines))
		}
		if !strings.HasPrefix(lines[1], "s1,Coldplay - Yellow,yt1,") || !strings.HasSuffix(lines[1], ",search,0.50") {
			t.Errorf("unexpected matched row %q", lines[1])
		}
		if lines[2] != "s2,Obscure,,,none,0.00" {
			t.Errorf("unexpected unmatched row %q", lines[2])
		}
	})
}

func TestReviewFile(t *testing.T) {
	t.Run("write and read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "review.json")
		review := &Review{
			Source:      models.PlatformSpotify,
			Destination: models.PlatformYouTube,
			Title:       "Road Trip",
			Mappings: []models.Mapping{
				{SourceTrack: models.Track{ID: "s1", Name: "Yellow"}, DestinationTrack: &models.Track{ID: "yt1"}},
				{SourceTrack: models.Track{ID: "s2", Name: "Obscure"}},
			},
		}

		if err := WriteReview(review, path); err != nil {
			t.Fatalf("failed to write: %v", err)
		}

		got, err := ReadReview(path)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if got.Title != "Road Trip" || len(got.Mappings) != 2 {
			t.Errorf("unexpected review %+v", got)
		}
		if got.Mappings[1].DestinationTrack != nil {
			t.Error("unmatched mapping should stay nil")
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte(`{"mappings": []}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadReview(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRenderReview(t *testing.T) {
	mappings := []models.Mapping{
		{SourceTrack: models.Track{Name: "Yellow", Artists: []string{"Coldplay"}}, DestinationTrack: &models.Track{ID: "yt1", Name: "Yellow"}, Stage: models.StageCache, Confidence: 1},
		{SourceTrack: models.Track{Name: "Obscure"}},
	}

	out := RenderReview("Road Trip", models.PlatformSpotify, models.PlatformYouTube, mappings)

	for _, want := range []string{"Road Trip", "Coldplay - Yellow", "no match", "1/2 matched", "cache"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
