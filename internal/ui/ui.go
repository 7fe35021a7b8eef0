package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/minutes/internal/recording"
	"github.com/desertthunder/minutes/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RecoveryView ViewState = iota
	ConfirmView
	RecordingView
	DiscardView
	FinalizingView
	ResultView
)

// Recorder is the recording controller the TUI drives.
type Recorder interface {
	SessionID() string
	State() recording.State
	Start(ctx context.Context, projectID string) error
	Pause() error
	Resume() error
	Stop(ctx context.Context) (*recording.Capture, error)
	Discard(ctx context.Context)
	Elapsed() time.Duration
	Stats() recording.Stats
}

// Finalizer turns a stopped capture into a processed meeting.
type Finalizer interface {
	Finalize(ctx context.Context, c *recording.Capture, progress chan<- tasks.ProgressUpdate) (*recording.FinalizeResult, error)
}

// Options configures a [Model].
type Options struct {
	Recorder    Recorder
	Finalizer   Finalizer
	ProjectID   string
	ProjectName string
	// Recoverable sessions are offered before a new recording starts.
	Recoverable []*recording.BackupSession
	Recover     func(ctx context.Context, sessionID string) (*recording.Capture, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	opts         Options
	view         ViewState
	width        int
	height       int
	recoveryList list.Model
	stopwatch    stopwatch.Model
	spinner      spinner.Model
	progressChan chan tasks.ProgressUpdate
	doneChan     chan finalizeResult
	progress     tasks.ProgressUpdate
	history      []string
	capture      *recording.Capture
	result       *recording.FinalizeResult
	err          error
	discarded    bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	m := &Model{
		ctx:       ctx,
		opts:      opts,
		view:      ConfirmView,
		stopwatch: stopwatch.NewWithInterval(time.Second),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.timer)),
		help:      help.New(),
		keys:      newKeyMap(),
	}

	if len(opts.Recoverable) > 0 && opts.Recover != nil {
		items := make([]list.Item, len(opts.Recoverable))
		for i, s := range opts.Recoverable {
			items[i] = sessionItem{session: s}
		}
		m.recoveryList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.recoveryList.Title = "Unfinished recordings"
		m.recoveryList.SetShowHelp(false)
		m.view = RecoveryView
	}
	return m
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState { return m.view }

// Result is the finalization outcome, nil until finalization finishes.
func (m *Model) Result() (*recording.FinalizeResult, error) { return m.result, m.err }

// Discarded reports whether the user threw the recording away.
func (m *Model) Discarded() bool { return m.discarded }

// Init implements [tea.Model].
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == RecoveryView {
			m.recoveryList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RecoveryView:
			return m.handleRecoveryKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RecordingView:
			return m.handleRecordingKeys(msg)
		case DiscardView:
			return m.handleDiscardKeys(msg)
		case FinalizingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
		case ResultView:
			return m, tea.Quit
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)

	case spinner.TickMsg:
		if m.view != FinalizingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.stopwatch, cmd = m.stopwatch.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStarted:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
			m.view = ResultView
			return m, nil
		}
		m.view = RecordingView
		return m, m.stopwatch.Start()

	case MsgStopped, MsgRecovered:
		res := msg.data.(captureResult)
		if res.err != nil {
			m.err = res.err
			m.view = ResultView
			return m, nil
		}
		m.capture = res.capture
		return m, m.startFinalize()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		m.history = append(m.history, m.progress.Message)
		return m, m.waitForProgress()

	case MsgFinalized:
		res := msg.data.(finalizeResult)
		m.result, m.err = res.result, res.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleRecoveryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no):
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.recoveryList.SelectedItem().(sessionItem); ok {
			m.view = FinalizingView
			return m, tea.Batch(m.spinner.Tick, m.recover(item.session.ID))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.recoveryList, cmd = m.recoveryList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.start()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit), msg.String() == "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleRecordingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.pause):
		if m.opts.Recorder.State() == recording.StatePaused {
			if err := m.opts.Recorder.Resume(); err != nil {
				m.err = err
				return m, nil
			}
			return m, m.stopwatch.Start()
		}
		if err := m.opts.Recorder.Pause(); err != nil {
			m.err = err
			return m, nil
		}
		return m, m.stopwatch.Stop()
	case key.Matches(msg, m.keys.stop):
		m.view = FinalizingView
		return m, tea.Batch(m.stopwatch.Stop(), m.spinner.Tick, m.stop())
	case key.Matches(msg, m.keys.discard), key.Matches(msg, m.keys.quit):
		m.view = DiscardView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleDiscardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.opts.Recorder.Discard(m.ctx)
		m.discarded = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.no):
		m.view = RecordingView
		return m, nil
	}
	return m, nil
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg(m.opts.Recorder.Start(m.ctx, m.opts.ProjectID))
	}
}

func (m *Model) stop() tea.Cmd {
	return func() tea.Msg {
		return stoppedMsg(m.opts.Recorder.Stop(m.ctx))
	}
}

func (m *Model) recover(sessionID string) tea.Cmd {
	return func() tea.Msg {
		return recoveredMsg(m.opts.Recover(m.ctx, sessionID))
	}
}

func (m *Model) startFinalize() tea.Cmd {
	m.view = FinalizingView
	m.progressChan = make(chan tasks.ProgressUpdate, 32)
	m.doneChan = make(chan finalizeResult, 1)

	progress, done, capture := m.progressChan, m.doneChan, m.capture
	go func() {
		result, err := m.opts.Finalizer.Finalize(m.ctx, capture, progress)
		close(progress)
		done <- finalizeResult{result, err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			res := <-done
			return finalizedMsg(res.result, res.err)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RecoveryView:
		return m.renderRecovery()
	case ConfirmView:
		return m.renderConfirm()
	case RecordingView:
		return m.renderRecording()
	case DiscardView:
		return m.renderDiscard()
	case FinalizingView:
		return m.renderFinalizing()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderRecovery() string {
	skip := key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "start new"))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, skip, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.recoveryList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Start recording?")
	project := m.opts.ProjectName
	if project == "" {
		project = m.opts.ProjectID
	}
	info := fmt.Sprintf("Project: %s\nSession: %s\n", project, m.opts.Recorder.SessionID())

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) stateBadge() string {
	switch m.opts.Recorder.State() {
	case recording.StateRecording:
		return styles.On("● REC", lipgloss.Color("#FF0000"))
	case recording.StatePaused:
		return styles.On("❚❚ PAUSED", lipgloss.Color("#FFA500"))
	default:
		return styles.On(strings.ToUpper(m.opts.Recorder.State().String()), lipgloss.Color("#626262"))
	}
}

func (m *Model) renderRecording() string {
	stats := m.opts.Recorder.Stats()
	header := lipgloss.JoinHorizontal(lipgloss.Center, m.stateBadge(), styles.timer.Render(FormatClock(m.stopwatch.Elapsed())))

	counters := fmt.Sprintf("Chunks: %d captured • %d backed up • %d uploaded", stats.Captured, stats.BackedUp, stats.Uploaded)
	var warnings []string
	if stats.BackupFailed > 0 {
		warnings = append(warnings, styles.warn.Render(fmt.Sprintf("%d chunks not backed up", stats.BackupFailed)))
	}
	if stats.UploadFailed > 0 {
		warnings = append(warnings, styles.warn.Render(fmt.Sprintf("%d chunks will be assembled from backup", stats.UploadFailed)))
	}
	if m.err != nil {
		warnings = append(warnings, styles.err.Render(m.err.Error()))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.pause, m.keys.stop, m.keys.discard})
	body := header + "\n\n" + counters
	if len(warnings) > 0 {
		body += "\n" + strings.Join(warnings, "\n")
	}
	return body + "\n\n" + helpView
}

func (m *Model) renderDiscard() string {
	title := styles.warn.Render("Discard this recording?")
	info := fmt.Sprintf("\n%s of audio and its local backup will be deleted.\n", FormatClock(m.stopwatch.Elapsed()))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderFinalizing() string {
	title := styles.title.Render("Saving recording")
	message := m.progress.Message
	if message == "" {
		message = "Stopping capture..."
	}

	var b strings.Builder
	for _, line := range m.history {
		if line != message {
			b.WriteString(styles.help.Render("  " + line))
			b.WriteString("\n")
		}
	}
	return fmt.Sprintf("%s\n\n%s%s %s", title, b.String(), m.spinner.View(), message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		hint := ""
		if m.capture != nil || m.opts.Recorder.State() == recording.StateStopped {
			hint = "\nThe recording is kept in the local backup; run `minutes recover` to retry."
		}
		return styles.err.Render(fmt.Sprintf("Recording failed: %v", m.err)) + hint + "\n\nPress any key to exit"
	}

	if m.result == nil {
		return styles.err.Render("No result available") + "\n\nPress any key to exit"
	}

	title := styles.ok.Render("✓ Meeting saved")
	info := fmt.Sprintf("\nMeeting: %s\nTasks created: %d", m.result.MeetingID, m.result.TasksCreated)
	if m.result.Summary != "" {
		info += "\n\n" + m.result.Summary
	}
	return fmt.Sprintf("%s\n%s\n\nPress any key to exit", title, info)
}

// FormatClock renders d as HH:MM:SS.
func FormatClock(d time.Duration) string {
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}
