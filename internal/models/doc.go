// Package models defines the domain entities for the crossfade playlist transfer service.
//
// The package contains three categories of types:
//
// 1. Transfer objects shared by every platform
//   - [Track] : platform-agnostic song metadata shown during review
//   - [Playlist] : playlist metadata with its ordered tracks
//   - [Mapping] : the pairing of a source track with its (possibly missing) destination track
//
// 2. Platform-native shapes with pure conversions to and from [Track]
//   - [SpotifyTrack] : catalog-style track with a primary artist list
//   - [YoutubeTrack] : feed-style video with a channel title and description
//
// 3. Persistent entities
//   - [CachedMatch] : a learned source to destination track pairing
//   - [TransferRecord] : an audit row written after a completed transfer
//   - [RefreshToken] : a stored OAuth refresh token for a user and platform
package models
