package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/minutes/internal/recording"
)

var _ list.Item = sessionItem{}

// sessionItem wraps [recording.BackupSession] to implement [list.Item].
type sessionItem struct {
	session *recording.BackupSession
}

func (i sessionItem) FilterValue() string { return i.session.ID }
func (i sessionItem) Title() string {
	return "Recording from " + i.session.StartedAt.Local().Format("Jan 2 3:04 PM")
}
func (i sessionItem) Description() string {
	duration := (time.Duration(i.session.DurationSeconds) * time.Second).String()
	return fmt.Sprintf("%d chunks • %s • %s", i.session.ChunkCount, duration, i.session.Status)
}
