// Package actions maps spoken commands to the fixed set of skill actions.
//
// Matching is keyword based: an action matches when every one of its keywords appears
// among the command's tokens, and the first match in declaration order wins.
package actions

import (
	"strings"
	"unicode"
)

// Action is one of the commands the skill understands.
type Action int

const (
	None Action = iota
	Help
	ListPlaylists
	ListDevices
	PlayPlaylist
	StopPlayback
	NextTrack
	SetVolume
	Continue
)

type definition struct {
	action   Action
	name     string
	keywords []string
}

// definitions is ordered; Resolve returns the first full match.
var definitions = []definition{
	{Help, "help", []string{"help"}},
	{ListPlaylists, "list_playlists", []string{"list", "playlists"}},
	{ListDevices, "list_devices", []string{"list", "devices"}},
	{PlayPlaylist, "play_playlist", []string{"play", "playlist"}},
	{StopPlayback, "stop_playback", []string{"stop", "playback"}},
	{NextTrack, "next_track", []string{"next", "track"}},
	{SetVolume, "set_volume", []string{"set", "volume"}},
	{Continue, "continue", []string{"continue"}},
}

// All returns every action in declaration order.
func All() []Action {
	all := make([]Action, len(definitions))
	for i, d := range definitions {
		all[i] = d.action
	}
	return all
}

func (a Action) definition() (definition, bool) {
	for _, d := range definitions {
		if d.action == a {
			return d, true
		}
	}
	return definition{}, false
}

// String returns the snake_case name, which is also the response template key.
func (a Action) String() string {
	if d, ok := a.definition(); ok {
		return d.name
	}
	return "none"
}

// Keywords returns a copy of the words that must all be present for a to match.
func (a Action) Keywords() []string {
	d, _ := a.definition()
	return append([]string(nil), d.keywords...)
}

// Parse looks an action up by its String name.
func Parse(name string) (Action, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range definitions {
		if d.name == name {
			return d.action, true
		}
	}
	return None, false
}

// Tokenize removes punctuation, lowercases and splits text on whitespace.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Fields(cleaned)
}

// Resolve returns the first action whose keywords are all among tokens.
func Resolve(tokens []string) (Action, bool) {
	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[strings.ToLower(t)] = struct{}{}
	}

	for _, d := range definitions {
		if matches(present, d.keywords) {
			return d.action, true
		}
	}
	return None, false
}

// ResolveText tokenizes text and resolves it.
func ResolveText(text string) (Action, bool) {
	return Resolve(Tokenize(text))
}

func matches(present map[string]struct{}, keywords []string) bool {
	for _, k := range keywords {
		if _, ok := present[k]; !ok {
			return false
		}
	}
	return true
}
