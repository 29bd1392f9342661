package skill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotskill/internal/actions"
	"github.com/desertthunder/spotskill/internal/formatter"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
)

// Player is the subset of the Spotify client the executor drives.
type Player interface {
	CurrentPlayback(ctx context.Context) (*models.Playback, error)
	StartPlayback(ctx context.Context, deviceID, contextURI string) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	SetShuffle(ctx context.Context, deviceID string, state bool) error
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
}

// Registry resolves a room to its playback target.
type Registry interface {
	MainDevice(ctx context.Context, room string, current []string) (*models.Device, error)
}

// Snapshots hands out the cached playlists and devices.
type Snapshots interface {
	Get(ctx context.Context) (*models.Snapshot, error)
}

// Command is one resolved request ready to execute.
type Command struct {
	Action actions.Action
	Room   string
	Params models.Parameters
}

// Executor performs the remote calls for each action.
type Executor struct {
	player          Player
	registry        Registry
	snapshots       Snapshots
	activationDelay time.Duration
	logger          *log.Logger
}

// NewExecutor creates an executor. activationDelay is the pause between starting a playlist and
// applying volume and shuffle, giving the target device time to become active.
func NewExecutor(player Player, registry Registry, snapshots Snapshots, activationDelay time.Duration, logger *log.Logger) *Executor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Executor{
		player:          player,
		registry:        registry,
		snapshots:       snapshots,
		activationDelay: activationDelay,
		logger:          logger.With("component", "executor"),
	}
}

// Execute runs cmd and returns the data for its response template.
//
// On error the returned data is still filled as far as execution got, so error templates can
// name the room or the value that could not be resolved.
func (e *Executor) Execute(ctx context.Context, cmd Command) (formatter.Data, error) {
	data := formatter.Data{Action: cmd.Action.String(), Room: cmd.Room}

	switch cmd.Action {
	case actions.Help:
		for _, a := range actions.All() {
			data.Actions = append(data.Actions, strings.Join(a.Keywords(), " "))
		}
		return data, nil
	case actions.ListPlaylists:
		snap, err := e.snapshots.Get(ctx)
		if err != nil {
			return data, fmt.Errorf("failed to load playlists: %w", err)
		}
		data.Playlists = snap.Playlists
		return data, nil
	case actions.ListDevices:
		snap, err := e.snapshots.Get(ctx)
		if err != nil {
			return data, fmt.Errorf("failed to load devices: %w", err)
		}
		data.Devices = snap.Devices
		return data, nil
	case actions.PlayPlaylist:
		return e.playPlaylist(ctx, cmd, data)
	case actions.StopPlayback:
		device, err := e.target(ctx, cmd, &data)
		if err != nil {
			return data, err
		}
		return data, e.player.Pause(ctx, device.SpotifyID())
	case actions.NextTrack:
		device, err := e.target(ctx, cmd, &data)
		if err != nil {
			return data, err
		}
		return data, e.player.Next(ctx, device.SpotifyID())
	case actions.SetVolume:
		return e.setVolume(ctx, cmd, data)
	case actions.Continue:
		return e.continuePlayback(ctx, cmd, data)
	default:
		return data, fmt.Errorf("%w: unsupported action %q", shared.ErrInvalidInput, cmd.Action)
	}
}

// withSnapshot fills the playlist and device lists of params from the cache.
func (e *Executor) withSnapshot(ctx context.Context, params models.Parameters) (models.Parameters, error) {
	snap, err := e.snapshots.Get(ctx)
	if err != nil {
		return params, fmt.Errorf("failed to load snapshot: %w", err)
	}
	params.Playlists = snap.Playlists
	params.Devices = snap.Devices
	return params, nil
}

// target returns the device named by ordinal, or the room's main device among the currently
// reported devices when none was named.
func (e *Executor) target(ctx context.Context, cmd Command, data *formatter.Data) (*models.Device, error) {
	params := cmd.Params
	if params.Devices == nil {
		var err error
		if params, err = e.withSnapshot(ctx, params); err != nil {
			return nil, err
		}
	}

	if params.DeviceIndex == 0 {
		current := make([]string, 0, len(params.Devices))
		for _, d := range params.Devices {
			current = append(current, d.SpotifyID())
		}
		device, err := e.registry.MainDevice(ctx, cmd.Room, current)
		if err != nil {
			return nil, err
		}
		data.Device = device
		return device, nil
	}

	device, ok := params.Device()
	if !ok {
		data.Subject = "device"
		return nil, fmt.Errorf("%w: device %d of %d", shared.ErrIndexOutOfRange, params.DeviceIndex, len(params.Devices))
	}
	data.Device = device
	return device, nil
}

func (e *Executor) playPlaylist(ctx context.Context, cmd Command, data formatter.Data) (formatter.Data, error) {
	params, err := e.withSnapshot(ctx, cmd.Params)
	if err != nil {
		return data, err
	}

	playlist, ok := params.Playlist()
	if !ok {
		data.Subject = "playlist"
		return data, fmt.Errorf("%w: playlist %d of %d", shared.ErrIndexOutOfRange, params.PlaylistIndex, len(params.Playlists))
	}
	data.Playlist = playlist

	cmd.Params = params
	device, err := e.target(ctx, cmd, &data)
	if err != nil {
		return data, err
	}

	if err := e.player.StartPlayback(ctx, device.SpotifyID(), playlist.ContextURI()); err != nil {
		return data, err
	}

	if err := sleep(ctx, e.activationDelay); err != nil {
		return data, err
	}

	volume := models.ClampVolume(device.DefaultVolume())
	if err := e.player.SetVolume(ctx, device.SpotifyID(), volume); err != nil {
		return data, err
	}
	data.Volume = volume

	if err := e.player.SetShuffle(ctx, device.SpotifyID(), true); err != nil {
		return data, err
	}

	e.logger.Info("started playlist", "playlist", playlist.Name, "device", device.DisplayName())
	return data, nil
}

func (e *Executor) setVolume(ctx context.Context, cmd Command, data formatter.Data) (formatter.Data, error) {
	if !cmd.Params.HasVolume {
		data.Subject = "volume"
		return data, fmt.Errorf("%w: no volume given", shared.ErrInvalidInput)
	}
	volume := models.ClampVolume(cmd.Params.Volume)
	data.Volume = volume

	deviceID := ""
	device, err := e.target(ctx, cmd, &data)
	switch {
	case err == nil:
		deviceID = device.SpotifyID()
	case cmd.Params.DeviceIndex == 0 && errors.Is(err, shared.ErrNoDeviceForRoom):
		// an empty id addresses the currently active device
		e.logger.Debug("no device in room, using active device", "room", cmd.Room)
	default:
		return data, err
	}

	return data, e.player.SetVolume(ctx, deviceID, volume)
}

func (e *Executor) continuePlayback(ctx context.Context, cmd Command, data formatter.Data) (formatter.Data, error) {
	playback, err := e.player.CurrentPlayback(ctx)
	if err != nil {
		return data, err
	}

	device, err := e.target(ctx, cmd, &data)
	if err != nil {
		return data, err
	}

	switch {
	case playback != nil && playback.IsPlaying && playback.Device.ID == device.SpotifyID():
		return data, nil
	case playback != nil && playback.IsPlaying:
		data.Transferred = true
		return data, e.player.TransferPlayback(ctx, device.SpotifyID(), true)
	default:
		data.Started = true
		return data, e.player.StartPlayback(ctx, device.SpotifyID(), "")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
