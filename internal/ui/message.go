package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/minutes/internal/recording"
	"github.com/desertthunder/minutes/internal/tasks"
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
	MsgStarted MsgKind = iota
	MsgStopped
	MsgRecovered
	MsgProgressUpdate
	MsgFinalized
)

type captureResult struct {
	capture *recording.Capture
	err     error
}

type finalizeResult struct {
	result *recording.FinalizeResult
	err    error
}

// startedMsg is the constructor for [MsgStarted]
func startedMsg(err error) Msg {
	return Msg{kind: MsgStarted, data: err}
}

// stoppedMsg is the constructor for [MsgStopped]
func stoppedMsg(capture *recording.Capture, err error) Msg {
	return Msg{kind: MsgStopped, data: captureResult{capture, err}}
}

// recoveredMsg is the constructor for [MsgRecovered]
func recoveredMsg(capture *recording.Capture, err error) Msg {
	return Msg{kind: MsgRecovered, data: captureResult{capture, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// finalizedMsg is the constructor for [MsgFinalized]
func finalizedMsg(result *recording.FinalizeResult, err error) Msg {
	return Msg{kind: MsgFinalized, data: finalizeResult{result, err}}
}
