package tasks

import (
	"fmt"

	"github.com/desertthunder/crossfade/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	MatchTracks Phase = iota
	SaveMappings
	CreatePlaylist
	AddTracks
	RecordTransfer
)

func (p Phase) String() string {
	switch p {
	case MatchTracks:
		return "match_tracks"
	case SaveMappings:
		return "save_mappings"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case RecordTransfer:
		return "record_transfer"
	default:
		return ""
	}
}

// sendProgress sends an update without blocking. A nil channel disables reporting.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func matchTrackUpdate(step, total int, m models.Mapping) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✗ %s", step, total, m.SourceTrack.Label())
	if m.Matched() {
		msg = fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, m.SourceTrack.Label(), m.Stage)
	}
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    m,
	}
}

func saveMappingsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveMappings,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving %d reviewed mappings...", count),
	}
}

func createPlaylistUpdate(dst models.Platform, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q on %s...", title, dst.DisplayName()),
	}
}

func addTracksUpdate(playlistID string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks to %s...", count, playlistID),
	}
}

func recordTransferUpdate(record *models.TransferRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordTransfer,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Transfer complete: %d/%d tracks", record.TracksMatched, record.TracksTotal),
		Data:    record,
	}
}
