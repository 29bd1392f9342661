// Spotify player client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Owner  owner               `json:"owner"`
	Public bool                `json:"public"`
	Tracks simplePlaylistTrack `json:"tracks"`
	URI    string              `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyDevice represents a Spotify Connect device.
type SpotifyDevice struct {
	ID            string `json:"id"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent *int   `json:"volume_percent"`
}

type playbackContext struct {
	URI string `json:"uri"`
}

type playbackItem struct {
	Name string `json:"name"`
}

// SpotifyPlaybackState represents the response of GET /me/player.
type SpotifyPlaybackState struct {
	Device       SpotifyDevice    `json:"device"`
	IsPlaying    bool             `json:"is_playing"`
	ShuffleState bool             `json:"shuffle_state"`
	Context      *playbackContext `json:"context"`
	Item         *playbackItem    `json:"item"`
}

// SpotifyService is a client for the player, device, and playlist endpoints of the Spotify Web API.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewSpotifyService creates a Spotify client from the configured OAuth2 credentials.
//
// The client cannot make API calls until [SpotifyService.Authenticate] is given a token source.
func NewSpotifyService(cfg shared.SpotifyConfig) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes(),
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		baseURL: spotifyBaseURL,
		limiter: rate.NewLimiter(limit, 1),
		timeout: shared.Duration(cfg.Timeout, 15*time.Second),
	}, nil
}

// OAuthConfig returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate routes subsequent API calls through an oauth2 client backed by source.
func (s *SpotifyService) Authenticate(ctx context.Context, source oauth2.TokenSource) {
	base := &http.Client{Timeout: s.timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, source)
	client.Timeout = s.timeout
	s.httpClient = client
}

// doRequest performs an authenticated request against endpoint, encoding body and decoding into result when set.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRateLimited, err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	apiLatency.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequests.WithLabelValues(method, endpoint, "error").Inc()
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) || errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrNotAuthenticated) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	apiRequests.WithLabelValues(method, endpoint, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Endpoint: endpoint, Status: resp.StatusCode, RetryAfter: retryAfter(resp.Header)}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func deviceQuery(deviceID string) url.Values {
	q := url.Values{}
	if deviceID != "" {
		q.Set("device_id", deviceID)
	}
	return q
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > playlistPageSize {
		limit = playlistPageSize
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, "/me/playlists", q, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Playlists retrieves all playlists of the current user, following pagination.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	offset := 0

	for {
		page, err := s.UserPlaylists(ctx, playlistPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			if sp.ID == "" {
				continue
			}
			playlists = append(playlists, models.Playlist{
				ID:         sp.ID,
				Name:       sp.Name,
				Owner:      sp.Owner.DisplayName,
				TrackCount: sp.Tracks.Total,
				URI:        sp.URI,
			})
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return playlists, nil
}

// Devices retrieves the user's available Spotify Connect devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]models.RemoteDevice, error) {
	var response struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, nil, &response); err != nil {
		return nil, err
	}

	devices := make([]models.RemoteDevice, 0, len(response.Devices))
	for _, d := range response.Devices {
		devices = append(devices, d.toModel())
	}
	return devices, nil
}

func (d SpotifyDevice) toModel() models.RemoteDevice {
	rd := models.RemoteDevice{ID: d.ID, Name: d.Name, Type: d.Type, IsActive: d.IsActive}
	if d.VolumePercent != nil {
		rd.VolumePercent = *d.VolumePercent
	}
	return rd
}

// CurrentPlayback returns the user's playback state, or nil when nothing is playing on any device.
func (s *SpotifyService) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	var state *SpotifyPlaybackState
	if err := s.doRequest(ctx, http.MethodGet, "/me/player", nil, nil, &state); err != nil {
		return nil, err
	}
	if state == nil || state.Device.ID == "" {
		return nil, nil
	}

	playback := &models.Playback{
		IsPlaying: state.IsPlaying,
		Shuffle:   state.ShuffleState,
		Device:    state.Device.toModel(),
	}
	if state.Context != nil {
		playback.ContextURI = state.Context.URI
	}
	if state.Item != nil {
		playback.Track = state.Item.Name
	}
	return playback, nil
}

// StartPlayback starts contextURI on the device, or resumes the current context when contextURI is empty.
func (s *SpotifyService) StartPlayback(ctx context.Context, deviceID, contextURI string) error {
	var body any
	if contextURI != "" {
		body = map[string]string{"context_uri": contextURI}
	}
	return s.doRequest(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), body, nil)
}

// Pause pauses playback on the device.
func (s *SpotifyService) Pause(ctx context.Context, deviceID string) error {
	return s.doRequest(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID), nil, nil)
}

// Next skips to the next track on the device.
func (s *SpotifyService) Next(ctx context.Context, deviceID string) error {
	return s.doRequest(ctx, http.MethodPost, "/me/player/next", deviceQuery(deviceID), nil, nil)
}

// SetVolume sets the device volume. The value is clamped to [0, 90] before it is sent.
func (s *SpotifyService) SetVolume(ctx context.Context, deviceID string, percent int) error {
	q := deviceQuery(deviceID)
	q.Set("volume_percent", strconv.Itoa(models.ClampVolume(percent)))
	return s.doRequest(ctx, http.MethodPut, "/me/player/volume", q, nil, nil)
}

// SetShuffle toggles shuffle on the device.
func (s *SpotifyService) SetShuffle(ctx context.Context, deviceID string, state bool) error {
	q := deviceQuery(deviceID)
	q.Set("state", strconv.FormatBool(state))
	return s.doRequest(ctx, http.MethodPut, "/me/player/shuffle", q, nil, nil)
}

// TransferPlayback moves playback to the device, starting it when play is true.
func (s *SpotifyService) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{"device_ids": []string{deviceID}, "play": play}
	return s.doRequest(ctx, http.MethodPut, "/me/player", nil, body, nil)
}
