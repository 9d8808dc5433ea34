// package models defines the data model for the playlist transfer service
package models

import (
	"fmt"
	"strings"
	"time"
)

// Track is the platform-agnostic track shown to users during review.
//
// ID is empty for tracks that have not been resolved on any platform (plain-text input).
// Description is only populated for video-platform tracks.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PrimaryArtist returns the first artist or an empty string.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Label renders the track as "Artist - Title", or just the title when there are no artists.
func (t Track) Label() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Name
}

// Playlist is playlist metadata plus its ordered tracks.
type Playlist struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url,omitempty"`
	Public   bool    `json:"public"`
	Tracks   []Track `json:"tracks"`
}

// MatchStage records which step of the matching ladder produced a mapping.
type MatchStage string

const (
	StageNone   MatchStage = "none"
	StageCache  MatchStage = "cache"
	StageSearch MatchStage = "search"
	StageAI     MatchStage = "ai"
)

// Mapping pairs a source track with its destination track.
// A nil DestinationTrack is an unmatched track, not an error.
type Mapping struct {
	SourceTrack      Track      `json:"source_track"`
	DestinationTrack *Track     `json:"destination_track"`
	Stage            MatchStage `json:"stage,omitempty"`
	Confidence       float64    `json:"confidence,omitempty"`
}

// Matched reports whether the mapping resolved to a destination track with an id.
func (m Mapping) Matched() bool {
	return m.DestinationTrack != nil && m.DestinationTrack.ID != ""
}

// CachedMatch is a persisted source to destination pairing, keyed by
// (SourcePlatform, DestinationPlatform, SourceTrackID). An empty DestinationTrackID records a known miss.
type CachedMatch struct {
	SourcePlatform      Platform
	DestinationPlatform Platform
	SourceTrackID       string
	DestinationTrackID  string
	DestinationName     string
	UpdatedAt           time.Time
}

// NewCachedMatch builds the cache row for a reviewed mapping.
// It returns false when the source track has no id and cannot be keyed.
func NewCachedMatch(src, dst Platform, m Mapping) (CachedMatch, bool) {
	if m.SourceTrack.ID == "" {
		return CachedMatch{}, false
	}
	cm := CachedMatch{SourcePlatform: src, DestinationPlatform: dst, SourceTrackID: m.SourceTrack.ID}
	if m.DestinationTrack != nil {
		cm.DestinationTrackID = m.DestinationTrack.ID
		cm.DestinationName = m.DestinationTrack.Name
	}
	return cm, true
}

// TransferStatus is the lifecycle state of a transfer record.
type TransferStatus string

const TransferCompleted TransferStatus = "completed"

// TransferRecord is the audit row written after a committed transfer.
type TransferRecord struct {
	ID                    string         `json:"id"`
	UserID                string         `json:"user_id"`
	SourcePlatform        Platform       `json:"source_platform"`
	DestinationPlatform   Platform       `json:"destination_platform"`
	SourcePlaylistID      string         `json:"source_playlist_id"`
	DestinationPlaylistID string         `json:"destination_playlist_id"`
	Status                TransferStatus `json:"status"`
	TracksTotal           int            `json:"tracks_total"`
	TracksMatched         int            `json:"tracks_matched"`
	TracksFailed          int            `json:"tracks_failed"`
	CreatedAt             time.Time      `json:"created_at"`
}

// Validate checks required fields before the record is persisted.
func (r *TransferRecord) Validate() error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("transfer record: user id is required")
	case r.SourcePlatform == "" || r.DestinationPlatform == "":
		return fmt.Errorf("transfer record: platforms are required")
	case r.DestinationPlaylistID == "":
		return fmt.Errorf("transfer record: destination playlist id is required")
	}
	return nil
}

// RefreshToken is a stored OAuth refresh token for one user on one platform.
type RefreshToken struct {
	UserID    string    `json:"user_id"`
	Platform  Platform  `json:"platform"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}
