package models

// SpotifyArtist is an artist credit on a catalog track.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack is the catalog-style native track shape.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   string          `json:"album"`
}

// ToTrack converts the native shape into a [Track].
func (s SpotifyTrack) ToTrack() Track {
	artists := make([]string, 0, len(s.Artists))
	for _, a := range s.Artists {
		artists = append(artists, a.Name)
	}
	return Track{ID: s.ID, Name: s.Name, Artists: artists, Album: s.Album}
}

// SpotifyTrackFromTrack converts a [Track] back into the native shape. Artist ids are not recoverable.
func SpotifyTrackFromTrack(t Track) SpotifyTrack {
	artists := make([]SpotifyArtist, 0, len(t.Artists))
	for _, name := range t.Artists {
		artists = append(artists, SpotifyArtist{Name: name})
	}
	return SpotifyTrack{ID: t.ID, Name: t.Name, Artists: artists, Album: t.Album}
}

// YoutubeTrack is the feed-style native track shape: a video posted by a channel.
type YoutubeTrack struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	ChannelID    string `json:"channel_id,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ToTrack converts the video into a [Track]; the channel becomes the single artist.
func (y YoutubeTrack) ToTrack() Track {
	var artists []string
	if y.ChannelTitle != "" {
		artists = []string{y.ChannelTitle}
	} else {
		artists = []string{}
	}
	return Track{ID: y.VideoID, Name: y.Title, Artists: artists, Description: y.Description}
}

// YoutubeTrackFromTrack converts a [Track] back into a video.
func YoutubeTrackFromTrack(t Track) YoutubeTrack {
	return YoutubeTrack{
		VideoID:      t.ID,
		Title:        t.Name,
		ChannelTitle: t.PrimaryArtist(),
		Description:  t.Description,
	}
}
