// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	"golang.org/x/oauth2"
)

// Call records one invocation on [MockPlayer].
type Call struct {
	Method   string
	DeviceID string
	Arg      string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%s, %s)", c.Method, c.DeviceID, c.Arg)
}

// MockPlayer is a test double for the Spotify player client.
//
// Errors keyed by method name are returned from that method.
type MockPlayer struct {
	mu sync.Mutex

	PlaylistsResult []models.Playlist
	DevicesResult   []models.RemoteDevice
	PlaybackResult  *models.Playback
	Errors          map[string]error

	calls []Call
}

func (m *MockPlayer) record(method, deviceID, arg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, DeviceID: deviceID, Arg: arg})
	return m.Errors[method]
}

// Calls returns a copy of the recorded calls.
func (m *MockPlayer) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls of one method.
func (m *MockPlayer) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls.
func (m *MockPlayer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockPlayer) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := m.record("Playlists", "", ""); err != nil {
		return nil, err
	}
	return m.PlaylistsResult, nil
}

func (m *MockPlayer) Devices(ctx context.Context) ([]models.RemoteDevice, error) {
	if err := m.record("Devices", "", ""); err != nil {
		return nil, err
	}
	return m.DevicesResult, nil
}

func (m *MockPlayer) CurrentPlayback(ctx context.Context) (*models.Playback, error) {
	if err := m.record("CurrentPlayback", "", ""); err != nil {
		return nil, err
	}
	return m.PlaybackResult, nil
}

func (m *MockPlayer) StartPlayback(ctx context.Context, deviceID, contextURI string) error {
	return m.record("StartPlayback", deviceID, contextURI)
}

func (m *MockPlayer) Pause(ctx context.Context, deviceID string) error {
	return m.record("Pause", deviceID, "")
}

func (m *MockPlayer) Next(ctx context.Context, deviceID string) error {
	return m.record("Next", deviceID, "")
}

func (m *MockPlayer) SetVolume(ctx context.Context, deviceID string, percent int) error {
	return m.record("SetVolume", deviceID, fmt.Sprint(percent))
}

func (m *MockPlayer) SetShuffle(ctx context.Context, deviceID string, state bool) error {
	return m.record("SetShuffle", deviceID, fmt.Sprint(state))
}

func (m *MockPlayer) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	return m.record("TransferPlayback", deviceID, fmt.Sprint(play))
}

// MockTokenStore is an in-memory token store.
type MockTokenStore struct {
	mu      sync.Mutex
	Tokens  map[string]*oauth2.Token
	Saves   int
	SaveErr error
}

func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{Tokens: map[string]*oauth2.Token{}}
}

func (s *MockTokenStore) Latest(ctx context.Context, user string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.Tokens[user]
	if !ok {
		return nil, shared.ErrTokenNotFound
	}
	c := *tok
	return &c, nil
}

func (s *MockTokenStore) Save(ctx context.Context, user string, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	c := *tok
	s.Tokens[user] = &c
	s.Saves++
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
