package tasks

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	tu "github.com/desertthunder/spotskill/internal/testing"
)

// gatedSource blocks Playlists until release is closed, when set.
type gatedSource struct {
	*tu.MockPlayer
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedSource) Playlists(ctx context.Context) ([]models.Playlist, error) {
	g.calls.Add(1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.MockPlayer.Playlists(ctx)
}

// flakySource fails its first failures Playlists calls.
type flakySource struct {
	*tu.MockPlayer
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakySource) Playlists(ctx context.Context) ([]models.Playlist, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, shared.ErrAPIRequest
	}
	return f.MockPlayer.Playlists(ctx)
}

type syncerFunc func(ctx context.Context, remotes []models.RemoteDevice) ([]*models.Device, error)

func (f syncerFunc) Sync(ctx context.Context, remotes []models.RemoteDevice) ([]*models.Device, error) {
	return f(ctx, remotes)
}

func passthroughSyncer() syncerFunc {
	return func(_ context.Context, remotes []models.RemoteDevice) ([]*models.Device, error) {
		devices := make([]*models.Device, 0, len(remotes))
		for i, r := range remotes {
			devices = append(devices, models.NewDevice(i+1, r.ID, r.Name))
		}
		return devices, nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCache(t *testing.T) {
	t.Run("Get blocks until first store", func(t *testing.T) {
		c := NewCache(time.Minute)
		got := make(chan *models.Snapshot, 1)

		go func() {
			snap, err := c.Get(context.Background())
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			got <- snap
		}()

		select {
		case <-got:
			t.Fatal("Get returned before the cache was populated")
		case <-time.After(20 * time.Millisecond):
		}

		want := &models.Snapshot{FetchedAt: time.Now()}
		c.Store(want)

		select {
		case snap := <-got:
			if snap != want {
				t.Errorf("expected stored snapshot, got %+v", snap)
			}
		case <-time.After(time.Second):
			t.Fatal("Get did not return after Store")
		}
	})

	t.Run("Get honours context before first store", func(t *testing.T) {
		c := NewCache(time.Minute)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if _, err := c.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if c.Peek() != nil {
			t.Errorf("Peek should be nil before first store")
		}
	})

	t.Run("miss calls stale hook", func(t *testing.T) {
		c := NewCache(time.Minute)
		var stale atomic.Int32
		c.OnStale(func() { stale.Add(1) })

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if _, err := c.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if stale.Load() != 1 {
			t.Errorf("expected stale hook on miss, got %d", stale.Load())
		}
	})

	t.Run("Store ignores nil", func(t *testing.T) {
		c := NewCache(time.Minute)
		c.Store(nil)
		select {
		case <-c.Ready():
			t.Error("nil store should not mark the cache ready")
		default:
		}
	})

	t.Run("expired snapshot calls stale hook and is still returned", func(t *testing.T) {
		c := NewCache(time.Minute)
		var stale atomic.Int32
		c.OnStale(func() { stale.Add(1) })

		snap := &models.Snapshot{FetchedAt: time.Now()}
		c.Store(snap)

		if _, err := c.Get(context.Background()); err != nil || stale.Load() != 0 {
			t.Fatalf("fresh snapshot should not be stale (err=%v, stale=%d)", err, stale.Load())
		}

		c.now = func() time.Time { return snap.FetchedAt.Add(2 * time.Minute) }
		got, err := c.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != snap {
			t.Errorf("expired snapshot should still be served")
		}
		if stale.Load() != 1 {
			t.Errorf("expected stale hook once, got %d", stale.Load())
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		c := NewCache(0)
		var stale atomic.Int32
		c.OnStale(func() { stale.Add(1) })
		c.Store(&models.Snapshot{FetchedAt: time.Now().Add(-24 * time.Hour)})

		if _, err := c.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if stale.Load() != 0 {
			t.Errorf("zero ttl should never be stale")
		}
	})
}

func TestRefresher(t *testing.T) {
	newSource := func() *gatedSource {
		return &gatedSource{MockPlayer: &tu.MockPlayer{
			PlaylistsResult: []models.Playlist{
				{ID: "p3", Name: "Running"},
				{ID: "p1", Name: "Chill"},
				{ID: "p2", Name: "Focus"},
			},
			DevicesResult: []models.RemoteDevice{
				{ID: "d1", Name: "kitchen-mini"},
			},
		}}
	}

	t.Run("Refresh sorts playlists and stores snapshot", func(t *testing.T) {
		c := NewCache(time.Minute)
		r := NewRefresher(c, newSource(), passthroughSyncer(), shared.NewLogger(io.Discard))

		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}

		snap := c.Peek()
		if snap == nil {
			t.Fatal("expected snapshot after refresh")
		}
		ids := []string{snap.Playlists[0].ID, snap.Playlists[1].ID, snap.Playlists[2].ID}
		if ids[0] != "p1" || ids[1] != "p2" || ids[2] != "p3" {
			t.Errorf("playlists should be sorted by id, got %v", ids)
		}
		if len(snap.Devices) != 1 || snap.Devices[0].Room() != "kitchen" {
			t.Errorf("unexpected devices %+v", snap.Devices)
		}
	})

	t.Run("failure keeps previous snapshot", func(t *testing.T) {
		c := NewCache(time.Minute)
		src := newSource()
		r := NewRefresher(c, src, passthroughSyncer(), shared.NewLogger(io.Discard))

		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		before := c.Peek()

		src.Errors = map[string]error{"Devices": shared.ErrAPIRequest}
		if err := r.Refresh(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if c.Peek() != before {
			t.Errorf("failed refresh replaced the snapshot")
		}
	})

	t.Run("registry failure", func(t *testing.T) {
		c := NewCache(time.Minute)
		failing := syncerFunc(func(context.Context, []models.RemoteDevice) ([]*models.Device, error) {
			return nil, errors.New("database is locked")
		})
		r := NewRefresher(c, newSource(), failing, shared.NewLogger(io.Discard))

		if err := r.Refresh(context.Background()); err == nil {
			t.Fatal("expected error from registry")
		}
		if c.Peek() != nil {
			t.Errorf("cache should stay empty")
		}
	})

	t.Run("reads during refresh see the previous snapshot", func(t *testing.T) {
		c := NewCache(time.Minute)
		src := newSource()
		r := NewRefresher(c, src, passthroughSyncer(), shared.NewLogger(io.Discard))

		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		before := c.Peek()

		src.release = make(chan struct{})
		src.PlaylistsResult = []models.Playlist{{ID: "p9", Name: "New"}}
		c.now = func() time.Time { return before.FetchedAt.Add(time.Hour) }

		got, err := c.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != before {
			t.Errorf("reader should get the previous snapshot while refreshing")
		}

		waitFor(t, func() bool { return src.calls.Load() == 2 })

		// a second stale read while the first refresh is blocked must not start another
		c.Get(context.Background())
		time.Sleep(20 * time.Millisecond)
		if n := src.calls.Load(); n != 2 {
			t.Errorf("expected single-flight refresh, got %d fetches", n)
		}

		close(src.release)
		waitFor(t, func() bool { return c.Peek() != before })
		if c.Peek().Playlists[0].ID != "p9" {
			t.Errorf("expected refreshed snapshot, got %+v", c.Peek().Playlists)
		}
	})

	t.Run("Get refills after a failed first load", func(t *testing.T) {
		c := NewCache(time.Minute)
		src := &flakySource{MockPlayer: newSource().MockPlayer}
		src.failures.Store(1)
		r := NewRefresher(c, src, passthroughSyncer(), shared.NewLogger(io.Discard))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		r.Start(ctx, time.Hour)
		waitFor(t, func() bool { return src.calls.Load() == 1 && !r.inFlight.Load() })
		if c.Peek() != nil {
			t.Fatal("failed load should leave the cache empty")
		}

		gctx, gcancel := context.WithTimeout(ctx, time.Second)
		defer gcancel()
		snap, err := c.Get(gctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(snap.Playlists) != 3 {
			t.Errorf("expected refreshed playlists, got %d", len(snap.Playlists))
		}
		if n := src.calls.Load(); n != 2 {
			t.Errorf("expected one retry, got %d source calls", n)
		}
	})

	t.Run("Start populates and keeps refreshing", func(t *testing.T) {
		c := NewCache(time.Minute)
		src := newSource()
		r := NewRefresher(c, src, passthroughSyncer(), shared.NewLogger(io.Discard))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		r.Start(ctx, 10*time.Millisecond)

		snap, err := c.Get(ctx)
		if err != nil || snap == nil {
			t.Fatalf("expected snapshot after Start, got %v / %v", snap, err)
		}
		waitFor(t, func() bool { return src.calls.Load() >= 3 })

		cancel()
		time.Sleep(30 * time.Millisecond)
		settled := src.calls.Load()
		time.Sleep(30 * time.Millisecond)
		if src.calls.Load() != settled {
			t.Errorf("refresher kept running after cancel")
		}
	})
}
