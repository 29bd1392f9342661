package models

import "fmt"

// Playlist represents a playlist in the user's library.
type Playlist struct {
	ID         string
	Name       string
	Owner      string
	TrackCount int
	URI        string
}

// ContextURI returns the playback context URI for the playlist.
func (p Playlist) ContextURI() string {
	if p.URI != "" {
		return p.URI
	}
	return PlaylistURI(p.ID)
}

// PlaylistURI builds a spotify:playlist URI from a playlist id.
func PlaylistURI(id string) string {
	return fmt.Sprintf("spotify:playlist:%s", id)
}

// RemoteDevice is a Spotify Connect device as reported by the player API.
type RemoteDevice struct {
	ID            string
	Name          string
	Type          string
	IsActive      bool
	VolumePercent int
}

// Playback is the user's current playback state.
type Playback struct {
	IsPlaying  bool
	Shuffle    bool
	ContextURI string
	Track      string
	Device     RemoteDevice
}
