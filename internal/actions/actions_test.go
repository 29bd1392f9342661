package actions

import (
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/spotskill/internal/models"
)

func TestTokenize(t *testing.T) {
	tc := []struct {
		name string
		text string
		want []string
	}{
		{name: "punctuation and case", text: "Hey Spotify, LIST my playlists!", want: []string{"hey", "spotify", "list", "my", "playlists"}},
		{name: "symbols removed", text: "set volume to 60%", want: []string{"set", "volume", "to", "60"}},
		{name: "apostrophes joined", text: "don't stop", want: []string{"dont", "stop"}},
		{name: "empty", text: "  ", want: []string{}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("every action resolves from its own keywords", func(t *testing.T) {
		for _, a := range All() {
			kw := a.Keywords()
			upper := make([]string, len(kw))
			for i, k := range kw {
				upper[i] = strings.ToUpper(k)
			}

			got, ok := Resolve(upper)
			if !ok || got != a {
				t.Errorf("Resolve(%v) = %v, %v; want %v", upper, got, ok, a)
			}
		}
	})

	t.Run("first declared match wins", func(t *testing.T) {
		got, _ := Resolve([]string{"list", "playlists", "devices"})
		if got != ListPlaylists {
			t.Errorf("expected list_playlists, got %v", got)
		}

		got, _ = Resolve([]string{"help", "continue"})
		if got != Help {
			t.Errorf("expected help, got %v", got)
		}
	})

	t.Run("partial keywords do not match", func(t *testing.T) {
		if got, ok := Resolve([]string{"list", "spotify"}); ok {
			t.Errorf("expected no match, got %v", got)
		}
	})

	t.Run("ResolveText", func(t *testing.T) {
		tc := map[string]Action{
			"Spotify, list playlists.":                ListPlaylists,
			"please play spotify playlist 2":          PlayPlaylist,
			"Set the Spotify volume to 40!":           SetVolume,
			"spotify next track please":               NextTrack,
			"stop spotify playback":                   StopPlayback,
			"continue spotify":                        Continue,
			"spotify, what devices? list devices now": ListDevices,
		}
		for text, want := range tc {
			if got, ok := ResolveText(text); !ok || got != want {
				t.Errorf("ResolveText(%q) = %v, %v; want %v", text, got, ok, want)
			}
		}
	})
}

func TestActionNames(t *testing.T) {
	for _, a := range All() {
		parsed, ok := Parse(a.String())
		if !ok || parsed != a {
			t.Errorf("Parse(%q) = %v, %v", a.String(), parsed, ok)
		}
	}

	if None.String() != "none" {
		t.Errorf("expected none, got %s", None.String())
	}
	if len(All()) != 8 {
		t.Errorf("expected 8 actions, got %d", len(All()))
	}
}

func TestParseNumber(t *testing.T) {
	tc := []struct {
		words []string
		want  int
		ok    bool
	}{
		{words: []string{"42"}, want: 42, ok: true},
		{words: []string{"seven"}, want: 7, ok: true},
		{words: []string{"twenty", "five"}, want: 25, ok: true},
		{words: []string{"ninety", "nine"}, want: 99, ok: true},
		{words: []string{"one", "hundred"}, want: 100, ok: true},
		{words: []string{"hundred", "fifty"}, want: 150, ok: true},
		{words: []string{"loud"}, ok: false},
		{words: nil, ok: false},
	}

	for _, tt := range tc {
		t.Run(strings.Join(tt.words, " "), func(t *testing.T) {
			got, ok := ParseNumber(tt.words...)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseNumber(%v) = %d, %v; want %d, %v", tt.words, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestScanNumbers(t *testing.T) {
	got := ScanNumbers("play spotify playlist twenty one on device 2")
	want := []models.NumberToken{
		{Value: 21, Previous: "playlist", Next: "on"},
		{Value: 2, Previous: "device"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanNumbers() = %+v, want %+v", got, want)
	}
}

func TestExtract(t *testing.T) {
	intent := func(text string, numbers ...models.NumberToken) models.Intent {
		return models.Intent{Numbers: numbers, ClientRequest: models.ClientRequest{Text: text}}
	}

	tc := []struct {
		name   string
		action Action
		intent models.Intent
		want   models.Parameters
	}{
		{
			name:   "volume after to",
			action: SetVolume,
			intent: intent("set spotify volume to 60", models.NumberToken{Value: 60, Previous: "to"}),
			want:   models.Parameters{Volume: 60, HasVolume: true},
		},
		{
			name:   "volume falls back to last number",
			action: SetVolume,
			intent: intent("set spotify volume 30", models.NumberToken{Value: 30, Previous: "volume"}),
			want:   models.Parameters{Volume: 30, HasVolume: true},
		},
		{
			name:   "volume with device",
			action: SetVolume,
			intent: intent("set spotify volume to fifty on device two"),
			want:   models.Parameters{Volume: 50, HasVolume: true, DeviceIndex: 2},
		},
		{
			name:   "missing volume",
			action: SetVolume,
			intent: intent("set spotify volume"),
			want:   models.Parameters{},
		},
		{
			name:   "playlist and device from numbers",
			action: PlayPlaylist,
			intent: intent("play spotify playlist 3 on device 1",
				models.NumberToken{Value: 3, Previous: "playlist"},
				models.NumberToken{Value: 1, Previous: "device"}),
			want: models.Parameters{PlaylistIndex: 3, DeviceIndex: 1},
		},
		{
			name:   "playlist from number words",
			action: PlayPlaylist,
			intent: intent("play spotify playlist four"),
			want:   models.Parameters{PlaylistIndex: 4},
		},
		{
			name:   "stop on device",
			action: StopPlayback,
			intent: intent("stop spotify playback on device 2"),
			want:   models.Parameters{DeviceIndex: 2},
		},
		{
			name:   "help ignores numbers",
			action: Help,
			intent: intent("spotify help 3"),
			want:   models.Parameters{},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.action, tt.intent)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
