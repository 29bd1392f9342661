package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// UnassignedRoom is used for devices whose name does not follow the room-label convention.
	UnassignedRoom = "unassigned"
	// DefaultVolume is applied after starting a playlist on a device that has no configured volume.
	DefaultVolume = 55
	// MaxVolume is the ceiling applied to every volume sent to a device.
	MaxVolume = 90

	nameDelimiter = "-"
)

// NormalizeRoom lowercases room and joins its words with underscores, so "Living Room" and
// "living_room" name the same room.
func NormalizeRoom(room string) string {
	return strings.ToLower(strings.Join(strings.Fields(room), "_"))
}

// ParseDeviceName splits a reported device name such as "kitchen-mini" into its room and label.
//
// Only the first delimiter counts. Names without a delimiter, or with an empty room or label,
// are placed in [UnassignedRoom] with the whole trimmed name as label.
func ParseDeviceName(raw string) (room, label string) {
	trimmed := strings.TrimSpace(raw)
	before, after, found := strings.Cut(trimmed, nameDelimiter)
	before, after = strings.TrimSpace(before), strings.TrimSpace(after)
	if !found || before == "" || after == "" {
		return UnassignedRoom, trimmed
	}
	return NormalizeRoom(before), after
}

// ClampVolume bounds v to [0, MaxVolume].
func ClampVolume(v int) int {
	switch {
	case v < 0:
		return 0
	case v > MaxVolume:
		return MaxVolume
	default:
		return v
	}
}

// Device is a Spotify Connect device known to the registry.
//
// Its room and label are derived from the name the device reports, so the only way to move a device
// to another room is to rename it upstream and let [Device.Rediscover] pick the change up.
type Device struct {
	id            string
	sequence      int
	spotifyID     string
	name          string
	room          string
	isMain        bool
	defaultVolume int
	ip            string
	lastSeenAt    time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

// NewDevice creates a device discovered with the given Spotify id and reported name.
func NewDevice(sequence int, spotifyID, reportedName string) *Device {
	now := time.Now()
	room, label := ParseDeviceName(reportedName)
	return &Device{
		sequence:      sequence,
		spotifyID:     spotifyID,
		name:          label,
		room:          room,
		defaultVolume: DefaultVolume,
		lastSeenAt:    now,
		createdAt:     now,
		updatedAt:     now,
	}
}

// DeviceRecord holds the persisted columns of a device row.
type DeviceRecord struct {
	ID            string
	Sequence      int
	SpotifyID     string
	Name          string
	Room          string
	IsMain        bool
	DefaultVolume int
	IP            string
	LastSeenAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RestoreDevice rebuilds a device from storage.
func RestoreDevice(r DeviceRecord) *Device {
	return &Device{
		id:            r.ID,
		sequence:      r.Sequence,
		spotifyID:     r.SpotifyID,
		name:          r.Name,
		room:          r.Room,
		isMain:        r.IsMain,
		defaultVolume: r.DefaultVolume,
		ip:            r.IP,
		lastSeenAt:    r.LastSeenAt,
		createdAt:     r.CreatedAt,
		updatedAt:     r.UpdatedAt,
	}
}

func (d *Device) ID() string            { return d.id }
func (d *Device) SetID(id string)       { d.id = id }
func (d *Device) Sequence() int         { return d.sequence }
func (d *Device) SpotifyID() string     { return d.spotifyID }
func (d *Device) Name() string          { return d.name }
func (d *Device) Room() string          { return d.room }
func (d *Device) IsMain() bool          { return d.isMain }
func (d *Device) DefaultVolume() int    { return d.defaultVolume }
func (d *Device) IP() string            { return d.ip }
func (d *Device) LastSeenAt() time.Time { return d.lastSeenAt }
func (d *Device) CreatedAt() time.Time  { return d.createdAt }
func (d *Device) UpdatedAt() time.Time  { return d.updatedAt }

func (d *Device) SetUpdatedAt(t time.Time) { d.updatedAt = t }
func (d *Device) SetMain(main bool)        { d.isMain = main }
func (d *Device) SetIP(ip string)          { d.ip = ip }

// SetDefaultVolume stores v clamped to [0, MaxVolume].
func (d *Device) SetDefaultVolume(v int) { d.defaultVolume = ClampVolume(v) }

// Rediscover applies a fresh report of the device, re-deriving its room and label.
// The main flag and default volume are kept.
func (d *Device) Rediscover(reportedName string, seenAt time.Time) {
	d.room, d.name = ParseDeviceName(reportedName)
	d.lastSeenAt = seenAt
}

// InRoom reports whether the device belongs to room, compared by [NormalizeRoom].
func (d *Device) InRoom(room string) bool {
	return d.room == NormalizeRoom(room)
}

// DisplayName is the label followed by the room, e.g. "mini (kitchen)".
func (d *Device) DisplayName() string {
	return fmt.Sprintf("%s (%s)", d.name, d.room)
}

// Validate checks required fields.
func (d *Device) Validate() error {
	if d.spotifyID == "" {
		return fmt.Errorf("spotify id is required")
	}
	if d.name == "" {
		return fmt.Errorf("device name is required")
	}
	if d.room == "" {
		return fmt.Errorf("device room is required")
	}
	if d.defaultVolume < 0 || d.defaultVolume > MaxVolume {
		return fmt.Errorf("default volume %d out of range", d.defaultVolume)
	}
	return nil
}
