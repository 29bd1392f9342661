package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/spotskill/internal/models"
)

// Cache is a single-cell snapshot store.
//
// Readers never see a partially built snapshot: a refresh builds a new value and swaps the pointer.
type Cache struct {
	snapshot  atomic.Pointer[models.Snapshot]
	ready     chan struct{}
	readyOnce sync.Once

	ttl     time.Duration
	now     func() time.Time
	onStale atomic.Pointer[func()]
}

// NewCache creates an empty cache whose snapshots expire after ttl. A ttl of zero never expires.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ready: make(chan struct{}),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the current snapshot.
//
// Before the first snapshot is stored it calls the stale hook and blocks until a snapshot is
// stored, or until ctx is done. An expired snapshot is still returned, and the stale hook is called
// so a refresh can run in the background.
func (c *Cache) Get(ctx context.Context) (*models.Snapshot, error) {
	if snap := c.snapshot.Load(); snap != nil {
		c.checkExpiry(snap)
		return snap, nil
	}

	c.stale()
	select {
	case <-c.ready:
		return c.snapshot.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the current snapshot without blocking. It is nil before the first store.
func (c *Cache) Peek() *models.Snapshot {
	return c.snapshot.Load()
}

// Store replaces the snapshot and releases any blocked readers.
func (c *Cache) Store(snap *models.Snapshot) {
	if snap == nil {
		return
	}
	c.snapshot.Store(snap)
	c.readyOnce.Do(func() { close(c.ready) })

	snapshotItems.WithLabelValues("playlists").Set(float64(len(snap.Playlists)))
	snapshotItems.WithLabelValues("devices").Set(float64(len(snap.Devices)))
	snapshotTimestamp.Set(float64(snap.FetchedAt.Unix()))
}

// Ready is closed once the first snapshot has been stored.
func (c *Cache) Ready() <-chan struct{} {
	return c.ready
}

// OnStale sets the hook called when a reader finds an expired snapshot or none at all.
func (c *Cache) OnStale(fn func()) {
	c.onStale.Store(&fn)
}

func (c *Cache) checkExpiry(snap *models.Snapshot) {
	if snap.Expired(c.now(), c.ttl) {
		c.stale()
	}
}

func (c *Cache) stale() {
	if fn := c.onStale.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}
