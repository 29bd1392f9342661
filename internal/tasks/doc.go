// Package tasks keeps the playlist and device snapshot used by the skill fresh.
//
// # Snapshot Cell
//
// [Cache] holds one immutable [models.Snapshot] behind an atomic pointer. Readers call
// [Cache.Get], which blocks only until the first snapshot is stored. After that it returns
// immediately, asking the owner to refresh when the snapshot has outlived its TTL.
//
// # Refresher
//
// [Refresher] fetches playlists and devices from the Spotify client, upserts the devices into
// the registry and swaps the new snapshot into the cache. [Refresher.Start] runs one refresh
// right away and then one per tick. A failed refresh is logged and the previous snapshot stays
// in place.
package tasks
