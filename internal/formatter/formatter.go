// package formatter converts playlists and proposed mappings to and from text, CSV, Markdown and the
// JSON review file the CLI writes between propose and commit.
package formatter

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

var numbered = regexp.MustCompile(`^\d+[.)]\s+`)

// ExportToText renders a playlist as re-importable plain text: a "# Name" header followed by one
// "Artist - Title" line per track.
func ExportToText(playlist *models.Playlist) []byte {
	var buf bytes.Buffer

	if playlist.Name != "" {
		fmt.Fprintf(&buf, "# %s\n\n", playlist.Name)
	}
	for _, track := range playlist.Tracks {
		buf.WriteString(track.Label())
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// ParseText reads typed playlist text. The first "#" line names the playlist, other "#" lines and blank
// lines are ignored, list numbering ("1. ", "2) ") is stripped and each line is split on " - ".
// Parsed tracks carry no id.
func ParseText(data []byte) *models.Playlist {
	playlist := &models.Playlist{Tracks: []models.Track{}}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			if playlist.Name == "" {
				playlist.Name = strings.TrimSpace(strings.TrimLeft(line, "#"))
			}
			continue
		}

		line = numbered.ReplaceAllString(line, "")
		artist, title := shared.ParseTypedTrack(line)
		if title == "" {
			continue
		}

		track := models.Track{Name: title, Artists: []string{}}
		if artist != "" {
			track.Artists = []string{artist}
		}
		playlist.Tracks = append(playlist.Tracks, track)
	}

	return playlist
}

// ExportToMarkdown renders playlist metadata and a numbered track list.
func ExportToMarkdown(playlist *models.Playlist, platform models.Platform) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", playlist.Name)
	if playlist.ImageURL != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", playlist.ImageURL)
	}

	fmt.Fprintf(&buf, "**Platform**: %s\n", platform.DisplayName())
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(playlist.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", visibility(playlist.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range playlist.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s\n", i+1, track.Label(), albumPart)
	}

	return buf.Bytes()
}

// ExportMappingsCSV writes one row per mapping: source id, source label, destination id, destination
// label, stage and confidence.
func ExportMappingsCSV(mappings []models.Mapping) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source ID", "Source", "Destination ID", "Destination", "Stage", "Confidence"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range mappings {
		record := []string{m.SourceTrack.ID, m.SourceTrack.Label(), "", "", string(m.Stage), strconv.FormatFloat(m.Confidence, 'f', 2, 64)}
		if m.DestinationTrack != nil {
			record[2] = m.DestinationTrack.ID
			record[3] = m.DestinationTrack.Label()
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// Review is the file written by "transfer propose" and read back by "transfer commit".
// Users may edit or delete destination tracks in between.
type Review struct {
	Source           models.Platform  `json:"source"`
	Destination      models.Platform  `json:"destination"`
	SourcePlaylistID string           `json:"source_playlist_id,omitempty"`
	Title            string           `json:"title"`
	Public           bool             `json:"public"`
	Mappings         []models.Mapping `json:"mappings"`
}

// WriteReview writes r as indented JSON.
func WriteReview(r *Review, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode review: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write review file: %w", err)
	}
	return nil
}

// ReadReview reads a review file written by [WriteReview].
func ReadReview(path string) (*Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read review file: %w", err)
	}

	var r Review
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: review file: %w", shared.ErrInvalidInput, err)
	}
	if r.Source == "" || r.Destination == "" {
		return nil, fmt.Errorf("%w: review file is missing platforms", shared.ErrInvalidInput)
	}
	return &r, nil
}

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}
