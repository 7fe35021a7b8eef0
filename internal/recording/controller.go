package recording

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/shared"
)

// RecoveryWindow is how old an unfinished backup may be and still be offered for recovery.
const RecoveryWindow = 24 * time.Hour

// State is the controller lifecycle: idle → recording ⇄ paused → stopped.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Capturer is an audio source emitting encoded chunks. The channel closes after Stop once
// the final chunk has been delivered.
type Capturer interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Pause() error
	Resume() error
	Stop() error
}

// ChunkError reports a failed backup or upload for one chunk.
type ChunkError struct {
	Index int
	Err   error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

// Stats counts chunks through each path.
type Stats struct {
	Captured     int
	BackedUp     int
	Uploaded     int
	BackupFailed int
	UploadFailed int
}

// Capture is a finished recording ready for finalization.
type Capture struct {
	SessionID string
	UserID    string
	ProjectID string
	StartedAt time.Time
	Duration  time.Duration
	Chunks    []ChunkRecord
	Recovered bool
}

// Blob returns the ordered concatenation of the captured chunks and whether indices are contiguous from 0.
func (c *Capture) Blob() ([]byte, bool) {
	return Assemble(c.Chunks)
}

// Size is the total captured bytes.
func (c *Capture) Size() int64 {
	var n int64
	for _, ch := range c.Chunks {
		n += int64(len(ch.Data))
	}
	return n
}

// AllUploaded reports whether every chunk reached storage.
func (c *Capture) AllUploaded() bool {
	for _, ch := range c.Chunks {
		if !ch.Uploaded {
			return false
		}
	}
	return true
}

// Controller drives one recording session: it owns the capture device, the chunk index counter and
// the per-chunk backup and upload goroutines.
type Controller struct {
	BackupErrs chan ChunkError
	UploadErrs chan ChunkError

	userID    string
	sessionID string
	capturer  Capturer
	uploader  *Uploader
	store     *BackupStore
	backup    BestEffort
	logger    *log.Logger
	now       func() time.Time

	mu          sync.Mutex
	state       State
	projectID   string
	chunks      map[int][]byte
	uploadedSet map[int]bool
	nextIndex   int
	stats       Stats
	startedAt   time.Time
	stoppedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	chunkCtx    context.Context
	chunkCancel context.CancelFunc
	discarded   bool
	cancel      context.CancelFunc
	loopDone    chan struct{}
	inflight    sync.WaitGroup
}

// NewController creates a controller for a new session owned by userID. store may be nil to run without backup.
func NewController(userID string, capturer Capturer, uploader *Uploader, store *BackupStore, logger *log.Logger) *Controller {
	sessionID := shared.GenerateID()
	return &Controller{
		BackupErrs:  make(chan ChunkError, 64),
		UploadErrs:  make(chan ChunkError, 64),
		userID:      userID,
		sessionID:   sessionID,
		capturer:    capturer,
		uploader:    uploader,
		store:       store,
		backup:      BestEffort{store: store},
		logger:      shared.WithLogger(logger, "component", "recorder", "session", sessionID),
		now:         time.Now,
		chunks:      map[int][]byte{},
		uploadedSet: map[int]bool{},
	}
}

func (c *Controller) SessionID() string { return c.sessionID }

func (c *Controller) UserID() string { return c.userID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins capture for projectID. It is only valid from idle.
func (c *Controller) Start(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("%w: cannot start from %s", shared.ErrInvalidState, c.state)
	}
	if projectID == "" {
		return shared.ErrMissingProject
	}

	captureCtx, cancel := context.WithCancel(ctx)
	chunks, err := c.capturer.Start(captureCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	c.projectID = projectID
	c.state = StateRecording
	c.startedAt = c.now()
	c.cancel = cancel
	// chunk work outlives Stop and the caller's context; only Discard abandons it.
	c.chunkCtx, c.chunkCancel = context.WithCancel(context.WithoutCancel(ctx))
	c.loopDone = make(chan struct{})

	c.backup.SaveSession(c.chunkCtx, c.backupSessionLocked(BackupRecording))
	go c.loop(chunks)

	c.logger.Info("recording started", "project", projectID)
	return nil
}

func (c *Controller) loop(chunks <-chan []byte) {
	defer close(c.loopDone)
	for data := range chunks {
		if len(data) == 0 {
			continue
		}
		c.handleChunk(data)
	}
}

// handleChunk assigns the next index and hands the chunk to the backup and upload goroutines.
func (c *Controller) handleChunk(data []byte) {
	c.mu.Lock()
	if c.chunks == nil {
		c.mu.Unlock()
		return
	}
	index := c.nextIndex
	c.nextIndex++
	c.chunks[index] = data
	c.stats.Captured++
	ctx := c.chunkCtx
	session := c.backupSessionLocked(BackupRecording)
	c.inflight.Add(2)
	c.mu.Unlock()

	backedUp := make(chan struct{})
	go c.backupChunk(ctx, index, data, session, backedUp)
	go c.uploadChunk(ctx, index, data, backedUp)
}

func (c *Controller) backupChunk(ctx context.Context, index int, data []byte, session BackupSession, done chan<- struct{}) {
	defer c.inflight.Done()
	defer close(done)

	if c.isDiscarded() {
		return
	}
	err := c.backup.SaveChunk(ctx, ChunkRecord{SessionID: c.sessionID, Index: index, Data: data, Timestamp: c.now().UTC()})
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.stats.BackupFailed++
	} else if c.store != nil {
		c.stats.BackedUp++
	}
	c.mu.Unlock()

	if err != nil {
		c.report(c.BackupErrs, ChunkError{Index: index, Err: err})
		return
	}
	c.backup.SaveSession(ctx, session)
}

// uploadChunk runs independently of the backup; only the uploaded flag waits for the backup row to exist.
func (c *Controller) uploadChunk(ctx context.Context, index int, data []byte, backedUp <-chan struct{}) {
	defer c.inflight.Done()

	if c.isDiscarded() {
		return
	}
	res := c.uploader.UploadChunkLive(ctx, data, c.userID, c.sessionID, index)
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return
	}
	if res.Success {
		c.stats.Uploaded++
		if c.uploadedSet != nil {
			c.uploadedSet[index] = true
		}
	} else {
		c.stats.UploadFailed++
	}
	c.mu.Unlock()

	if !res.Success {
		c.report(c.UploadErrs, ChunkError{Index: index, Err: res.Err})
		return
	}
	<-backedUp
	if c.isDiscarded() {
		return
	}
	c.backup.MarkUploaded(ctx, c.sessionID, index)
}

func (c *Controller) isDiscarded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discarded
}

// report never blocks a chunk goroutine on a reader that has gone away.
func (c *Controller) report(ch chan ChunkError, e ChunkError) {
	select {
	case ch <- e:
	default:
		c.logger.Warn("dropping chunk error, channel full", "chunk", e.Index, "error", e.Err)
	}
}

// Pause suspends capture.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return fmt.Errorf("%w: cannot pause from %s", shared.ErrInvalidState, c.state)
	}
	if err := c.capturer.Pause(); err != nil {
		return fmt.Errorf("failed to pause capture: %w", err)
	}
	c.state = StatePaused
	c.pausedAt = c.now()
	return nil
}

// Resume continues a paused capture.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return fmt.Errorf("%w: cannot resume from %s", shared.ErrInvalidState, c.state)
	}
	if err := c.capturer.Resume(); err != nil {
		return fmt.Errorf("failed to resume capture: %w", err)
	}
	c.pausedTotal += c.now().Sub(c.pausedAt)
	c.state = StateRecording
	return nil
}

// Stop ends capture and waits for every in-flight chunk backup and upload before returning the capture.
func (c *Controller) Stop(ctx context.Context) (*Capture, error) {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot stop from %s", shared.ErrInvalidState, state)
	}
	if c.state == StatePaused {
		// a paused ffmpeg cannot flush its last chunk
		if err := c.capturer.Resume(); err != nil {
			c.logger.Warn("failed to resume before stop", "error", err)
		}
		c.pausedTotal += c.now().Sub(c.pausedAt)
	}
	c.state = StateStopped
	c.stoppedAt = c.now()
	c.mu.Unlock()

	if err := c.capturer.Stop(); err != nil {
		c.logger.Warn("capture did not stop cleanly", "error", err)
	}

	select {
	case <-c.loopDone:
	case <-ctx.Done():
		c.cancel()
		return nil, ctx.Err()
	}
	c.inflight.Wait()
	c.cancel()
	c.chunkCancel()

	c.mu.Lock()
	capture := c.captureLocked()
	session := c.backupSessionLocked(BackupStopped)
	c.mu.Unlock()

	c.backup.SaveSession(ctx, session)
	c.logger.Info("recording stopped", "chunks", len(capture.Chunks), "duration", capture.Duration.Round(time.Second))
	return capture, nil
}

// Discard stops the device and drops all state without uploading anything further.
// In-flight chunk work is cancelled and waited for before the backup is deleted.
func (c *Controller) Discard(ctx context.Context) {
	c.mu.Lock()
	active := c.state == StateRecording || c.state == StatePaused
	started := c.state != StateIdle
	c.state = StateStopped
	c.stoppedAt = c.now()
	c.discarded = true
	c.chunks = nil
	c.uploadedSet = nil
	c.mu.Unlock()

	if started && c.chunkCancel != nil {
		c.chunkCancel()
	}
	if active {
		if err := c.capturer.Stop(); err != nil {
			c.logger.Warn("capture did not stop cleanly", "error", err)
		}
		c.cancel()
	}
	c.inflight.Wait()
	c.backup.DeleteSession(ctx, c.sessionID)
	c.logger.Info("recording discarded")
}

// Elapsed is the recorded time, excluding pauses.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.startedAt.IsZero() {
		return 0
	}
	end := c.now()
	if c.state == StateStopped {
		end = c.stoppedAt
	}
	d := end.Sub(c.startedAt) - c.pausedTotal
	if c.state == StatePaused {
		d -= end.Sub(c.pausedAt)
	}
	return max(d, 0)
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) backupSessionLocked(status BackupStatus) BackupSession {
	return BackupSession{
		ID:              c.sessionID,
		UserID:          c.userID,
		ProjectID:       c.projectID,
		Status:          status,
		StartedAt:       c.startedAt.UTC(),
		UpdatedAt:       c.now().UTC(),
		DurationSeconds: int(c.elapsedLocked().Seconds()),
	}
}

func (c *Controller) captureLocked() *Capture {
	records := make([]ChunkRecord, 0, len(c.chunks))
	for i, data := range c.chunks {
		records = append(records, ChunkRecord{SessionID: c.sessionID, Index: i, Data: data, Uploaded: c.uploadedSet[i]})
	}
	return &Capture{
		SessionID: c.sessionID,
		UserID:    c.userID,
		ProjectID: c.projectID,
		StartedAt: c.startedAt.UTC(),
		Duration:  c.elapsedLocked(),
		Chunks:    sortChunks(records),
	}
}

func sortChunks(chunks []ChunkRecord) []ChunkRecord {
	sorted := slices.Clone(chunks)
	slices.SortFunc(sorted, func(a, b ChunkRecord) int { return a.Index - b.Index })
	return sorted
}

// FindRecoverable lists unfinished sessions from the last [RecoveryWindow] that have backed-up chunks.
func FindRecoverable(ctx context.Context, store *BackupStore) ([]*BackupSession, error) {
	if store == nil {
		return nil, nil
	}
	return store.IncompleteSessions(ctx, RecoveryWindow)
}

// Recover rebuilds a capture from the backup store so finalization can resume.
func Recover(ctx context.Context, store *BackupStore, sessionID string) (*Capture, error) {
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	chunks, err := store.GetChunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: session %s", shared.ErrNoChunks, sessionID)
	}

	if session.Status == BackupRecording {
		session.Status = BackupStopped
		session.UpdatedAt = time.Now().UTC()
		if err := store.SaveSession(ctx, *session); err != nil {
			store.logger.Warn("failed to mark recovered session stopped", "session", sessionID, "error", err)
		}
	}

	return &Capture{
		SessionID: session.ID,
		UserID:    session.UserID,
		ProjectID: session.ProjectID,
		StartedAt: session.StartedAt,
		Duration:  time.Duration(session.DurationSeconds) * time.Second,
		Chunks:    chunks,
		Recovered: true,
	}, nil
}
