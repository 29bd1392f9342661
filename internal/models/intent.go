package models

import "strings"

// NumberToken is a number recognized in the spoken text together with its neighbours.
type NumberToken struct {
	Value    int    `json:"number_token"`
	Previous string `json:"previous_token,omitempty"`
	Next     string `json:"next_token,omitempty"`
}

// ClientRequest is the spoken utterance and where the reply should go.
type ClientRequest struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Room        string `json:"room"`
	OutputTopic string `json:"output_topic"`
}

// Intent is the intent analysis result published on the message bus.
type Intent struct {
	ID            string        `json:"id"`
	Nouns         []string      `json:"nouns"`
	Verbs         []string      `json:"verbs"`
	Rooms         []string      `json:"rooms"`
	Numbers       []NumberToken `json:"numbers"`
	ClientRequest ClientRequest `json:"client_request"`
}

// HasNoun reports whether noun appears among the intent's nouns, ignoring case.
func (i Intent) HasNoun(noun string) bool {
	for _, n := range i.Nouns {
		if strings.EqualFold(strings.TrimSpace(n), noun) {
			return true
		}
	}
	return false
}

// Response is the text reply published for a handled intent.
type Response struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Room string `json:"room"`
}
