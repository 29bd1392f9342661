// Package ui implements the interactive console using bubbletea's Elm architecture.
//
// The console has two views:
//  1. [ConsoleView] : type a command, see the spoken response appended to the scrollback
//  2. [DevicesView] : browse the cached devices with their rooms and main flags
//
// Each submitted line becomes an intent for the configured room and goes through the same
// processing as commands received from the message bus. Work that touches Spotify runs in a
// [tea.Cmd] and reports back through the Msg union type.
package ui
