// Package models defines the domain entities of the Spotify skill.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs describing remote state
//   - [Playlist] : Playlist metadata from the user's library
//   - [RemoteDevice] : A Spotify Connect device as reported by the player API
//   - [Playback] : The current playback state
//
// 2. Persistent Entities: Database-backed models
//   - [Device] : A known device with its room, main flag, and default volume
//
// [Parameters] and [Snapshot] are transient values that live for a single command or cache generation.
//
// All persistent entities implement the Model interface providing ID, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
