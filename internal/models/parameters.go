package models

import "time"

// Snapshot is an immutable view of the user's playlists and devices.
//
// Both slices are sorted by remote id so that ordinals stay stable between refreshes.
type Snapshot struct {
	Playlists []Playlist
	Devices   []*Device
	FetchedAt time.Time
}

// Expired reports whether the snapshot is older than ttl at now.
func (s *Snapshot) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.FetchedAt) > ttl
}

// Parameters holds the values extracted from one command.
//
// Ordinals are 1-based; zero means the command did not name one.
type Parameters struct {
	PlaylistIndex int
	DeviceIndex   int
	Volume        int
	HasVolume     bool

	Playlists []Playlist
	Devices   []*Device
}

// Playlist returns the playlist named by PlaylistIndex.
func (p Parameters) Playlist() (Playlist, bool) {
	if p.PlaylistIndex < 1 || p.PlaylistIndex > len(p.Playlists) {
		return Playlist{}, false
	}
	return p.Playlists[p.PlaylistIndex-1], true
}

// Device returns the device named by DeviceIndex.
func (p Parameters) Device() (*Device, bool) {
	if p.DeviceIndex < 1 || p.DeviceIndex > len(p.Devices) {
		return nil, false
	}
	return p.Devices[p.DeviceIndex-1], true
}
