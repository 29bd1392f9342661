// Package services implements the Spotify Web API client used by the skill.
//
// # Spotify Player Client
//
// [SpotifyService] wraps the player, device, and playlist endpoints the skill needs. Requests go
// through an [oauth2] client built from a token source, so expired access tokens are refreshed on
// demand, and through a client-side [rate.Limiter] so bursts of voice commands do not trip the
// API's own limits.
//
// # Token Persistence
//
// [PersistingTokenSource] wraps the standard refresh flow and writes every new token to a
// [TokenStore]. It is the only caller of the store, and it runs on whichever goroutine the HTTP
// transport asks for a token on.
//
// # Error Handling
//
// Failures are mapped onto sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : no token source configured, or no stored token
//   - [shared.ErrAuthFailed] : 401/403 responses and refresh failures
//   - [shared.ErrNotFound] : 404 responses, usually an unknown device id
//   - [shared.ErrRateLimited] : 429 responses or a cancelled limiter wait
//   - [shared.ErrAPIRequest] : everything else
package services
