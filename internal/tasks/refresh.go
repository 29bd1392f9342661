package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
)

const defaultRefreshTimeout = 30 * time.Second

// Source lists the remote playlists and devices.
type Source interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
	Devices(ctx context.Context) ([]models.RemoteDevice, error)
}

// DeviceSyncer upserts reported devices and returns the registry records.
type DeviceSyncer interface {
	Sync(ctx context.Context, devices []models.RemoteDevice) ([]*models.Device, error)
}

// Refresher rebuilds the cache snapshot from the Spotify client and the device registry.
type Refresher struct {
	cache    *Cache
	source   Source
	registry DeviceSyncer
	logger   *log.Logger

	timeout  time.Duration
	inFlight atomic.Bool
}

// NewRefresher creates a refresher and registers it as the cache's stale hook.
func NewRefresher(cache *Cache, source Source, registry DeviceSyncer, logger *log.Logger) *Refresher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := &Refresher{
		cache:    cache,
		source:   source,
		registry: registry,
		logger:   logger.With("component", "refresher"),
		timeout:  defaultRefreshTimeout,
	}
	cache.OnStale(r.TriggerRefresh)
	return r
}

// Refresh fetches playlists and devices, syncs the devices into the registry and stores the
// new snapshot. On error the cache keeps its previous snapshot.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()
	defer func() { refreshDuration.Observe(time.Since(start).Seconds()) }()

	snap, err := r.build(ctx)
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return err
	}

	r.cache.Store(snap)
	refreshTotal.WithLabelValues("success").Inc()
	r.logger.Debug("snapshot refreshed", "playlists", len(snap.Playlists), "devices", len(snap.Devices))
	return nil
}

func (r *Refresher) build(ctx context.Context) (*models.Snapshot, error) {
	playlists, err := r.source.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlists: %w", err)
	}

	remotes, err := r.source.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch devices: %w", err)
	}

	devices, err := r.registry.Sync(ctx, remotes)
	if err != nil {
		return nil, fmt.Errorf("failed to sync devices: %w", err)
	}

	sorted := append([]models.Playlist(nil), playlists...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &models.Snapshot{
		Playlists: sorted,
		Devices:   devices,
		FetchedAt: time.Now(),
	}, nil
}

// TriggerRefresh starts a background refresh unless one is already running.
func (r *Refresher) TriggerRefresh() {
	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer r.inFlight.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("background refresh failed", "error", err)
		}
	}()
}

// Start refreshes once and then on every tick of interval until ctx is cancelled.
// A non-positive interval runs only the initial refresh.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	go func() {
		r.tick(ctx)
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()
}

func (r *Refresher) tick(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer r.inFlight.Store(false)

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.Refresh(rctx); err != nil && ctx.Err() == nil {
		r.logger.Error("snapshot refresh failed", "error", err)
	}
}
