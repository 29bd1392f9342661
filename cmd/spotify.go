package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/repositories"
	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/urfave/cli/v3"
)

// deviceView is the JSON shape printed by `devices list --json`.
type deviceView struct {
	Ordinal       int       `json:"ordinal"`
	ID            string    `json:"id"`
	SpotifyID     string    `json:"spotify_id"`
	Name          string    `json:"name"`
	Room          string    `json:"room"`
	IsMain        bool      `json:"is_main"`
	DefaultVolume int       `json:"default_volume"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

func newDeviceView(ordinal int, d *models.Device) deviceView {
	return deviceView{
		Ordinal:       ordinal,
		ID:            d.ID(),
		SpotifyID:     d.SpotifyID(),
		Name:          d.Name(),
		Room:          d.Room(),
		IsMain:        d.IsMain(),
		DefaultVolume: d.DefaultVolume(),
		LastSeenAt:    d.LastSeenAt(),
	}
}

// Playlists lists the user's playlists numbered the way voice commands address them.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("listing spotify playlists")
	playlists, err := client.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	sort.Slice(playlists, func(i, j int) bool { return playlists[i].ID < playlists[j].ID })

	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for i, p := range playlists {
		r.writePlain("%3d. %-40s %4d tracks  %s\n", i+1, p.Name, p.TrackCount, p.Owner)
	}
	return nil
}

// DevicesList prints the registry, optionally syncing it from Spotify first.
func (r *Runner) DevicesList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.registry()
	if err != nil {
		return err
	}

	if cmd.Bool("sync") {
		client, err := r.spotifyClient(ctx)
		if err != nil {
			return err
		}
		remotes, err := client.Devices(ctx)
		if err != nil {
			return err
		}
		synced, err := repo.Sync(ctx, remotes)
		if err != nil {
			return err
		}
		r.logger.Info("synced devices", "count", len(synced))
	}

	devices, err := repo.List(ctx, map[string]any{"room": models.NormalizeRoom(cmd.String("room"))})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]deviceView, len(devices))
		for i, d := range devices {
			views[i] = newDeviceView(i+1, d)
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(devices) == 0 {
		return r.writePlain("No devices registered. Run 'spotskill devices list --sync' with a device online.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Devices (%d)", len(devices)))
	for i, d := range devices {
		main := ""
		if d.IsMain() {
			main = "★ main"
		}
		r.writePlain("%3d. %-24s %-16s vol %-3d %s\n", i+1, d.Name(), strings.ReplaceAll(d.Room(), "_", " "), d.DefaultVolume(), main)
	}
	return nil
}

// DevicesMain marks a device as its room's main device.
func (r *Runner) DevicesMain(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.registry()
	if err != nil {
		return err
	}

	device, err := findDevice(ctx, repo, cmd.StringArg("device"))
	if err != nil {
		return err
	}

	updated, err := repo.SetMain(ctx, device.ID())
	if err != nil {
		return err
	}
	r.logger.Info("main device changed", "room", updated.Room(), "device", updated.Name())
	return r.writePlain("✓ %s is now the main device\n", updated.DisplayName())
}

// DevicesVolume stores the volume applied after a playlist starts on a device.
func (r *Runner) DevicesVolume(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("volume")
	volume, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: volume %q is not a number", shared.ErrInvalidArgument, raw)
	}

	repo, err := r.registry()
	if err != nil {
		return err
	}

	device, err := findDevice(ctx, repo, cmd.StringArg("device"))
	if err != nil {
		return err
	}

	updated, err := repo.SetDefaultVolume(ctx, device.ID(), volume)
	if err != nil {
		return err
	}
	if updated.DefaultVolume() != volume {
		r.logger.Warn("volume clamped", "requested", volume, "stored", updated.DefaultVolume())
	}
	return r.writePlain("✓ Default volume for %s set to %d\n", updated.DisplayName(), updated.DefaultVolume())
}

// findDevice resolves ref as an ordinal from `devices list`, a registry id, or a Spotify device id.
func findDevice(ctx context.Context, repo *repositories.DeviceRepository, ref string) (*models.Device, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: device", shared.ErrMissingArgument)
	}

	if n, err := strconv.Atoi(ref); err == nil {
		devices, err := repo.List(ctx, nil)
		if err != nil {
			return nil, err
		}
		if n < 1 || n > len(devices) {
			return nil, fmt.Errorf("%w: device %d of %d", shared.ErrIndexOutOfRange, n, len(devices))
		}
		return devices[n-1], nil
	}

	device, err := repo.Get(ctx, ref)
	if err == nil {
		return device, nil
	}
	return repo.GetBySpotifyID(ctx, ref)
}
