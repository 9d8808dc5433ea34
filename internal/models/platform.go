package models

import (
	"fmt"
	"strings"
)

// Platform identifies a music platform (or the plain-text pseudo-platform).
type Platform string

const (
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
	PlatformText    Platform = "text"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{PlatformSpotify, PlatformYouTube, PlatformText}

// IsVideo reports whether tracks on the platform are videos (feed style) rather than catalog entries.
func (p Platform) IsVideo() bool {
	return p == PlatformYouTube
}

// IsText reports whether p is the plain-text pseudo-platform.
func (p Platform) IsText() bool {
	return p == PlatformText
}

func (p Platform) String() string {
	return string(p)
}

// DisplayName returns the human readable platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformSpotify:
		return "Spotify"
	case PlatformYouTube:
		return "YouTube"
	case PlatformText:
		return "Plain text"
	default:
		return string(p)
	}
}

// ParsePlatform resolves user input such as "yt" or "Spotify" into a [Platform].
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spotify":
		return PlatformSpotify, nil
	case "youtube", "yt":
		return PlatformYouTube, nil
	case "text", "plain", "txt":
		return PlatformText, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}
