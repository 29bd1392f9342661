package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotskill/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgResponse MsgKind = iota
	MsgSnapshot
)

type responseData struct {
	input   string
	resp    models.Response
	handled bool
}

type snapshotData struct {
	snapshot *models.Snapshot
	err      error
}

// responseMsg is the constructor for [MsgResponse]
func responseMsg(input string, resp models.Response, handled bool) Msg {
	return Msg{kind: MsgResponse, data: responseData{input: input, resp: resp, handled: handled}}
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(snap *models.Snapshot, err error) Msg {
	return Msg{kind: MsgSnapshot, data: snapshotData{snapshot: snap, err: err}}
}
