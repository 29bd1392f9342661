package skill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotskill/internal/actions"
	"github.com/desertthunder/spotskill/internal/formatter"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/repositories"
	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/desertthunder/spotskill/internal/tasks"
	tu "github.com/desertthunder/spotskill/internal/testing"
)

type fixture struct {
	player   *tu.MockPlayer
	registry *repositories.DeviceRepository
	cache    *tasks.Cache
	devices  map[string]*models.Device
}

// newFixture registers four devices: d1 kitchen, d2 and d3 (main) in living_room, d4 unassigned.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	registry := repositories.NewDeviceRepository(db)
	synced, err := registry.Sync(ctx, []models.RemoteDevice{
		{ID: "d3", Name: "living_room-tv"},
		{ID: "d1", Name: "kitchen-mini"},
		{ID: "d4", Name: "Phone"},
		{ID: "d2", Name: "living_room-sonos"},
	})
	if err != nil {
		t.Fatalf("failed to sync devices: %v", err)
	}

	devices := map[string]*models.Device{}
	for _, d := range synced {
		devices[d.SpotifyID()] = d
	}
	if _, err := registry.SetMain(ctx, devices["d3"].ID()); err != nil {
		t.Fatalf("failed to set main device: %v", err)
	}

	cache := tasks.NewCache(0)
	cache.Store(&models.Snapshot{
		Playlists: []models.Playlist{{ID: "p1", Name: "Chill"}, {ID: "p2", Name: "Focus"}},
		Devices:   synced,
		FetchedAt: time.Now(),
	})

	return &fixture{player: &tu.MockPlayer{}, registry: registry, cache: cache, devices: devices}
}

func (f *fixture) executor() *Executor {
	return NewExecutor(f.player, f.registry, f.cache, 0, shared.NewLogger(io.Discard))
}

func calls(cs []tu.Call) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}

func TestExecutor(t *testing.T) {
	ctx := context.Background()

	tc := []struct {
		name     string
		cmd      Command
		playback *models.Playback
		wantErr  error
		want     string
		check    func(t *testing.T, data formatter.Data)
	}{
		{
			name: "help makes no remote calls",
			cmd:  Command{Action: actions.Help},
			check: func(t *testing.T, data formatter.Data) {
				if len(data.Actions) != len(actions.All()) || data.Actions[1] != "list playlists" {
					t.Errorf("unexpected help phrases %v", data.Actions)
				}
			},
		},
		{
			name: "list playlists reads the cache",
			cmd:  Command{Action: actions.ListPlaylists},
			check: func(t *testing.T, data formatter.Data) {
				if len(data.Playlists) != 2 {
					t.Errorf("expected 2 playlists, got %d", len(data.Playlists))
				}
			},
		},
		{
			name: "list devices reads the cache",
			cmd:  Command{Action: actions.ListDevices},
			check: func(t *testing.T, data formatter.Data) {
				if len(data.Devices) != 4 || data.Devices[0].SpotifyID() != "d1" {
					t.Errorf("unexpected devices %v", data.Devices)
				}
			},
		},
		{
			name: "play playlist on room main device",
			cmd:  Command{Action: actions.PlayPlaylist, Room: "kitchen", Params: models.Parameters{PlaylistIndex: 2}},
			want: "StartPlayback(d1, spotify:playlist:p2); SetVolume(d1, 55); SetShuffle(d1, true)",
			check: func(t *testing.T, data formatter.Data) {
				if data.Playlist.Name != "Focus" || data.Device.SpotifyID() != "d1" || data.Volume != 55 {
					t.Errorf("unexpected data %+v", data)
				}
			},
		},
		{
			name: "play playlist on named device",
			cmd:  Command{Action: actions.PlayPlaylist, Room: "kitchen", Params: models.Parameters{PlaylistIndex: 1, DeviceIndex: 2}},
			want: "StartPlayback(d2, spotify:playlist:p1); SetVolume(d2, 55); SetShuffle(d2, true)",
		},
		{
			name:    "playlist ordinal out of range",
			cmd:     Command{Action: actions.PlayPlaylist, Room: "kitchen", Params: models.Parameters{PlaylistIndex: 5}},
			wantErr: shared.ErrIndexOutOfRange,
			check: func(t *testing.T, data formatter.Data) {
				if data.Subject != "playlist" {
					t.Errorf("expected playlist subject, got %q", data.Subject)
				}
			},
		},
		{
			name:    "missing playlist ordinal",
			cmd:     Command{Action: actions.PlayPlaylist, Room: "kitchen"},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name:    "device ordinal out of range",
			cmd:     Command{Action: actions.PlayPlaylist, Room: "kitchen", Params: models.Parameters{PlaylistIndex: 1, DeviceIndex: 9}},
			wantErr: shared.ErrIndexOutOfRange,
		},
		{
			name:    "play in room without devices",
			cmd:     Command{Action: actions.PlayPlaylist, Room: "garage", Params: models.Parameters{PlaylistIndex: 1}},
			wantErr: shared.ErrNoDeviceForRoom,
		},
		{
			name: "stop uses the flagged main device",
			cmd:  Command{Action: actions.StopPlayback, Room: "living_room"},
			want: "Pause(d3, )",
		},
		{
			name: "next on named device",
			cmd:  Command{Action: actions.NextTrack, Room: "living_room", Params: models.Parameters{DeviceIndex: 1}},
			want: "Next(d1, )",
		},
		{
			name:    "next in unknown room",
			cmd:     Command{Action: actions.NextTrack, Room: "garage"},
			wantErr: shared.ErrNoDeviceForRoom,
		},
		{
			name: "volume is clamped",
			cmd:  Command{Action: actions.SetVolume, Room: "kitchen", Params: models.Parameters{Volume: 120, HasVolume: true}},
			want: "SetVolume(d1, 90)",
			check: func(t *testing.T, data formatter.Data) {
				if data.Volume != 90 {
					t.Errorf("expected clamped volume in data, got %d", data.Volume)
				}
			},
		},
		{
			name: "volume falls back to active device",
			cmd:  Command{Action: actions.SetVolume, Room: "garage", Params: models.Parameters{Volume: 40, HasVolume: true}},
			want: "SetVolume(, 40)",
			check: func(t *testing.T, data formatter.Data) {
				if data.Device != nil {
					t.Errorf("no device should be named, got %v", data.Device)
				}
			},
		},
		{
			name:    "volume without a number",
			cmd:     Command{Action: actions.SetVolume, Room: "kitchen"},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name: "continue starts playback when idle",
			cmd:  Command{Action: actions.Continue, Room: "living_room"},
			want: "CurrentPlayback(, ); StartPlayback(d3, )",
			check: func(t *testing.T, data formatter.Data) {
				if !data.Started || data.Transferred {
					t.Errorf("expected started, got %+v", data)
				}
			},
		},
		{
			name:     "continue transfers from another device",
			cmd:      Command{Action: actions.Continue, Room: "living_room"},
			playback: &models.Playback{IsPlaying: true, Device: models.RemoteDevice{ID: "d1"}},
			want:     "CurrentPlayback(, ); TransferPlayback(d3, true)",
			check: func(t *testing.T, data formatter.Data) {
				if !data.Transferred {
					t.Errorf("expected transferred, got %+v", data)
				}
			},
		},
		{
			name:     "continue is a no-op on the main device",
			cmd:      Command{Action: actions.Continue, Room: "living_room"},
			playback: &models.Playback{IsPlaying: true, Device: models.RemoteDevice{ID: "d3"}},
			want:     "CurrentPlayback(, )",
		},
		{
			name:     "continue resumes paused playback",
			cmd:      Command{Action: actions.Continue, Room: "kitchen"},
			playback: &models.Playback{IsPlaying: false, Device: models.RemoteDevice{ID: "d3"}},
			want:     "CurrentPlayback(, ); StartPlayback(d1, )",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.player.PlaybackResult = tt.playback

			data, err := f.executor().Execute(ctx, tt.cmd)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			if got := calls(f.player.Calls()); got != tt.want {
				t.Errorf("calls = %q, want %q", got, tt.want)
			}
			if tt.check != nil {
				tt.check(t, data)
			}
		})
	}

	t.Run("remote failure stops the sequence", func(t *testing.T) {
		f := newFixture(t)
		f.player.Errors = map[string]error{"StartPlayback": fmt.Errorf("%w: device offline", shared.ErrAPIRequest)}

		_, err := f.executor().Execute(ctx, Command{Action: actions.PlayPlaylist, Room: "kitchen", Params: models.Parameters{PlaylistIndex: 1}})
		if !shared.IsRemote(err) {
			t.Fatalf("expected remote error, got %v", err)
		}
		if len(f.player.CallsTo("SetVolume")) != 0 {
			t.Errorf("volume should not be set after a failed start")
		}
	})

	t.Run("activation delay honours context", func(t *testing.T) {
		f := newFixture(t)
		e := NewExecutor(f.player, f.registry, f.cache, time.Hour, shared.NewLogger(io.Discard))

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := e.Execute(cctx, Command{Action: actions.PlayPlaylist, Room: "kitchen", Params: models.Parameters{PlaylistIndex: 1}})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if got := calls(f.player.Calls()); got != "StartPlayback(d1, spotify:playlist:p1)" {
			t.Errorf("unexpected calls %q", got)
		}
	})

	t.Run("main device must be currently reported", func(t *testing.T) {
		f := newFixture(t)
		var reported []*models.Device
		for _, id := range []string{"d1", "d2", "d4"} {
			reported = append(reported, f.devices[id])
		}
		cache := tasks.NewCache(0)
		cache.Store(&models.Snapshot{Devices: reported, FetchedAt: time.Now()})

		e := NewExecutor(f.player, f.registry, cache, 0, shared.NewLogger(io.Discard))
		data, err := e.Execute(ctx, Command{Action: actions.StopPlayback, Room: "living_room"})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := calls(f.player.Calls()); got != "Pause(d2, )" {
			t.Errorf("expected the reported sonos over the unreported main tv, got %q", got)
		}
		if data.Device == nil || data.Device.SpotifyID() != "d2" {
			t.Errorf("unexpected target device %v", data.Device)
		}
	})

	t.Run("empty cache blocks until context is done", func(t *testing.T) {
		f := newFixture(t)
		e := NewExecutor(f.player, f.registry, tasks.NewCache(0), 0, shared.NewLogger(io.Discard))

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		if _, err := e.Execute(cctx, Command{Action: actions.ListPlaylists}); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

// panicPlayer panics on Pause.
type panicPlayer struct {
	*tu.MockPlayer
}

func (p panicPlayer) Pause(ctx context.Context, deviceID string) error {
	panic("boom")
}

type published struct {
	topic string
	resp  models.Response
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent chan published
	err  error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{sent: make(chan published, 8)}
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, resp models.Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent <- published{topic: topic, resp: resp}
	return p.err
}

func newSkill(t *testing.T, f *fixture, player Player, pub Publisher, opts Options) *Skill {
	t.Helper()
	catalog, err := formatter.NewCatalog("")
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	logger := shared.NewLogger(io.Discard)
	return New(opts, NewExecutor(player, f.registry, f.cache, 0, logger), catalog, pub, logger)
}

func intent(text, room string, numbers ...models.NumberToken) models.Intent {
	return models.Intent{
		ID:      "intent-1",
		Numbers: numbers,
		ClientRequest: models.ClientRequest{
			ID:   "req-1",
			Text: text,
			Room: room,
		},
	}
}

func TestSkill(t *testing.T) {
	ctx := context.Background()
	opts := Options{Name: "spotify", CertaintyThreshold: 0.8, DefaultRoom: "kitchen", OutputTopic: "assistant/output/text"}

	t.Run("Certainty", func(t *testing.T) {
		s := newSkill(t, newFixture(t), &tu.MockPlayer{}, nil, opts)

		tc := []struct {
			name   string
			intent models.Intent
			want   float64
		}{
			{name: "noun", intent: models.Intent{Nouns: []string{"Spotify"}}, want: 1},
			{name: "text", intent: intent("Spotify, next track!", ""), want: 1},
			{name: "neither", intent: intent("turn on the lights", ""), want: 0},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if got := s.Certainty(tt.intent); got != tt.want {
					t.Errorf("Certainty() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("ignores intents below threshold", func(t *testing.T) {
		f := newFixture(t)
		s := newSkill(t, f, f.player, nil, opts)

		if _, ok := s.Process(ctx, intent("stop playback", "kitchen")); ok {
			t.Error("intent without the skill name should be ignored")
		}
		if len(f.player.Calls()) != 0 {
			t.Errorf("ignored intent made calls: %v", f.player.Calls())
		}
	})

	t.Run("ignores unmatched action", func(t *testing.T) {
		f := newFixture(t)
		s := newSkill(t, f, f.player, nil, opts)

		if _, ok := s.Process(ctx, intent("spotify dance", "kitchen")); ok {
			t.Error("unmatched action should be ignored")
		}
	})

	t.Run("responses", func(t *testing.T) {
		tc := []struct {
			name   string
			intent models.Intent
			errors map[string]error
			want   string
		}{
			{
				name:   "play playlist",
				intent: intent("spotify play playlist one", "kitchen", models.NumberToken{Value: 1, Previous: "playlist"}),
				want:   "Playing Chill on mini.",
			},
			{
				name:   "ordinal from text",
				intent: intent("spotify play playlist 2", "kitchen"),
				want:   "Playing Focus on mini.",
			},
			{
				name:   "invalid ordinal",
				intent: intent("spotify play playlist 7", "kitchen"),
				want:   "which playlist you meant",
			},
			{
				name:   "room without device",
				intent: intent("spotify stop playback", "garage"),
				want:   "no Spotify device in the garage",
			},
			{
				name:   "spoken room name",
				intent: intent("spotify stop playback", "Living Room"),
				want:   "Stopped playback on tv.",
			},
			{
				name:   "remote failure",
				intent: intent("spotify next track", "kitchen"),
				errors: map[string]error{"Next": fmt.Errorf("%w: 502", shared.ErrAPIRequest)},
				want:   "Spotify did not accept the request",
			},
			{
				name:   "default room",
				intent: intent("spotify set volume to 30", ""),
				want:   "Volume set to 30 on mini.",
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				f.player.Errors = tt.errors
				s := newSkill(t, f, f.player, nil, opts)

				resp, ok := s.Process(ctx, tt.intent)
				if !ok {
					t.Fatal("expected a response")
				}
				if !strings.Contains(resp.Text, tt.want) {
					t.Errorf("response %q should contain %q", resp.Text, tt.want)
				}
				if resp.ID != "req-1" {
					t.Errorf("response should carry the request id, got %q", resp.ID)
				}
			})
		}
	})

	t.Run("recovers from panics", func(t *testing.T) {
		f := newFixture(t)
		s := newSkill(t, f, panicPlayer{f.player}, nil, opts)

		resp, ok := s.Process(ctx, intent("spotify stop playback", "kitchen"))
		if !ok || !strings.Contains(resp.Text, "Something went wrong") {
			t.Errorf("expected generic error response, got %q", resp.Text)
		}
	})

	t.Run("Enqueue drops when full", func(t *testing.T) {
		o := opts
		o.QueueSize = 1
		s := newSkill(t, newFixture(t), &tu.MockPlayer{}, nil, o)

		if !s.Enqueue(intent("spotify help", "kitchen")) {
			t.Fatal("first intent should be queued")
		}
		if s.Enqueue(intent("spotify help", "kitchen")) {
			t.Error("second intent should be dropped")
		}
	})

	t.Run("Run publishes to the request topic", func(t *testing.T) {
		f := newFixture(t)
		pub := newRecordingPublisher()
		s := newSkill(t, f, f.player, pub, opts)

		rctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- s.Run(rctx) }()

		custom := intent("spotify help", "kitchen")
		custom.ClientRequest.OutputTopic = "assistant/kitchen/output"
		s.Enqueue(custom)
		s.Enqueue(intent("spotify stop playback", "kitchen"))
		s.Enqueue(intent("lights off", "kitchen"))

		for _, want := range []string{"assistant/kitchen/output", "assistant/output/text"} {
			select {
			case got := <-pub.sent:
				if got.topic != want {
					t.Errorf("published to %q, want %q", got.topic, want)
				}
				if got.resp.Room != "kitchen" {
					t.Errorf("unexpected room %q", got.resp.Room)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("no response published to %s", want)
			}
		}

		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
		select {
		case extra := <-pub.sent:
			t.Errorf("ignored intent should not publish, got %+v", extra)
		default:
		}
	})
}

func TestErrorTemplate(t *testing.T) {
	tc := []struct {
		err  error
		want string
	}{
		{err: shared.ErrIndexOutOfRange, want: formatter.InvalidInput},
		{err: fmt.Errorf("wrapped: %w", shared.ErrInvalidInput), want: formatter.InvalidInput},
		{err: shared.ErrNoDeviceForRoom, want: formatter.NoDevice},
		{err: shared.ErrRateLimited, want: formatter.RemoteError},
		{err: shared.ErrAuthFailed, want: formatter.RemoteError},
		{err: context.DeadlineExceeded, want: formatter.Error},
		{err: errors.New("boom"), want: formatter.Error},
	}

	for _, tt := range tc {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := errorTemplate(tt.err); got != tt.want {
				t.Errorf("errorTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}
