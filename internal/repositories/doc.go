// Package repositories implements SQLite persistence for the skill's durable state.
//
// Key Implementations:
//   - [DeviceRepository] : the device registry, keyed by Spotify device id, with room and main-device lookups
//   - [TokenRepository] : the OAuth token cache, newest row per user wins
//
// The two repositories are meant to be given separate *sql.DB handles opened against the same file:
// the token repository is called from inside the OAuth transport, the device repository from the command
// worker and the cache refresher.
//
// Sequence numbers provide stable ordering (device #1, #2, ...) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
