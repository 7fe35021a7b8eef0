package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"golang.org/x/time/rate"
)

const (
	MaxUploadAttempts = 3
	// SignedURLTTL is how long the transcription provider may fetch the recording.
	SignedURLTTL = 3600
	contentType  = "audio/webm"
)

// UploadRoute is the server's size-limited upload endpoint.
type UploadRoute interface {
	UploadObject(ctx context.Context, userID, sessionID, name string, data []byte) (string, error)
}

// UploadResult is the outcome of one chunk upload. Failures are reported, never returned.
type UploadResult struct {
	Success  bool
	Path     string
	Attempts int
	Err      error
}

// Uploader sends chunks and recordings to object storage.
type Uploader struct {
	route  UploadRoute
	store  services.ObjectStore
	delay  func(ctx context.Context, d time.Duration) error
	logger *log.Logger
}

// NewUploader creates an uploader. route may be nil to always write to storage directly.
func NewUploader(route UploadRoute, store services.ObjectStore, logger *log.Logger) *Uploader {
	return &Uploader{
		route:  route,
		store:  store,
		delay:  sleepContext,
		logger: shared.WithLogger(logger, "component", "upload"),
	}
}

// WithDelay replaces the backoff sleep.
func (u *Uploader) WithDelay(delay func(ctx context.Context, d time.Duration) error) *Uploader {
	u.delay = delay
	return u
}

// UploadChunkLive uploads one chunk to {userId}/{sessionId}/chunk-{index}.webm.
//
// It makes up to [MaxUploadAttempts] attempts, waiting attempt × 1s between them. A 413 from the
// upload route switches to a direct upload within the same attempt.
func (u *Uploader) UploadChunkLive(ctx context.Context, chunk []byte, userID, sessionID string, index int) UploadResult {
	objectPath := models.ChunkPath(userID, sessionID, index)

	var err error
	for attempt := 1; attempt <= MaxUploadAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return UploadResult{Path: objectPath, Attempts: attempt - 1, Err: cerr}
		}
		if err = u.put(ctx, userID, sessionID, objectPath, chunk); err == nil {
			return UploadResult{Success: true, Path: objectPath, Attempts: attempt}
		}
		u.logger.Warn("chunk upload failed", "session", sessionID, "chunk", index, "attempt", attempt, "error", err)

		if attempt == MaxUploadAttempts {
			break
		}
		if derr := u.delay(ctx, time.Duration(attempt)*time.Second); derr != nil {
			err = derr
			return UploadResult{Path: objectPath, Attempts: attempt, Err: err}
		}
	}
	return UploadResult{
		Path:     objectPath,
		Attempts: MaxUploadAttempts,
		Err:      fmt.Errorf("failed to upload chunk %d after %d attempts: %w", index, MaxUploadAttempts, err),
	}
}

// put writes through the upload route, falling back to storage when the route rejects the size.
func (u *Uploader) put(ctx context.Context, userID, sessionID, objectPath string, data []byte) error {
	if u.route != nil {
		_, err := u.route.UploadObject(ctx, userID, sessionID, path.Base(objectPath), data)
		if err == nil || !services.IsPayloadTooLarge(err) {
			return err
		}
		u.logger.Info("payload too large for upload route, uploading directly", "path", objectPath, "bytes", len(data))
	}
	return u.store.Upload(ctx, objectPath, data, contentType)
}

// UploadRecording uploads an assembled recording to {userId}/{sessionId}/recording.webm.
func (u *Uploader) UploadRecording(ctx context.Context, blob []byte, userID, sessionID string) (string, error) {
	if len(blob) == 0 {
		return "", shared.ErrNoChunks
	}
	objectPath := models.RecordingPath(userID, sessionID)
	if err := u.put(ctx, userID, sessionID, objectPath, blob); err != nil {
		return "", fmt.Errorf("failed to upload recording: %w", err)
	}
	return objectPath, nil
}

// AssembleChunks downloads chunk-0 through chunk-(total-1) and uploads their concatenation as the recording.
func (u *Uploader) AssembleChunks(ctx context.Context, userID, sessionID string, total int) (string, error) {
	if total <= 0 {
		return "", shared.ErrNoChunks
	}

	var buf bytes.Buffer
	for i := range total {
		data, err := u.store.Download(ctx, models.ChunkPath(userID, sessionID, i))
		if err != nil {
			return "", fmt.Errorf("failed to download chunk %d: %w", i, err)
		}
		buf.Write(data)
	}

	finalPath := models.RecordingPath(userID, sessionID)
	if err := u.store.Upload(ctx, finalPath, buf.Bytes(), contentType); err != nil {
		return "", fmt.Errorf("failed to upload assembled recording: %w", err)
	}
	u.logger.Info("assembled recording from storage", "session", sessionID, "chunks", total, "bytes", buf.Len())
	return finalPath, nil
}

// GetSignedURL returns a time-limited URL for path.
func (u *Uploader) GetSignedURL(ctx context.Context, objectPath string, ttlSeconds int) (string, error) {
	signed, err := u.store.SignedURL(ctx, objectPath, ttlSeconds)
	if err != nil {
		if errors.Is(err, shared.ErrSignedURL) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", shared.ErrSignedURL, err)
	}
	return signed, nil
}

// DeleteRecording removes every chunk and the assembled recording of a session.
func (u *Uploader) DeleteRecording(ctx context.Context, userID, sessionID string) (int, error) {
	paths, err := u.store.List(ctx, models.SessionPrefix(userID, sessionID))
	if err != nil {
		return 0, fmt.Errorf("failed to list recording objects: %w", err)
	}
	if len(paths) == 0 {
		return 0, nil
	}
	if err := u.store.Remove(ctx, paths...); err != nil {
		return 0, fmt.Errorf("failed to remove recording objects: %w", err)
	}
	return len(paths), nil
}

// UploadMissing re-uploads backed-up chunks that never reached storage, paced by limiter.
// It returns how many chunks were uploaded.
func (u *Uploader) UploadMissing(ctx context.Context, chunks []ChunkRecord, userID string, limiter *rate.Limiter) (int, error) {
	uploaded := 0
	var errs []error
	for _, c := range chunks {
		if c.Uploaded {
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return uploaded, err
			}
		}
		res := u.UploadChunkLive(ctx, c.Data, userID, c.SessionID, c.Index)
		if !res.Success {
			errs = append(errs, res.Err)
			continue
		}
		uploaded++
	}
	return uploaded, errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Assemble concatenates chunks in index order regardless of the order they are given in.
// It reports whether the indices are contiguous from 0.
func Assemble(chunks []ChunkRecord) ([]byte, bool) {
	sorted := sortChunks(chunks)
	var buf bytes.Buffer
	contiguous := true
	for i, c := range sorted {
		if c.Index != i {
			contiguous = false
		}
		buf.Write(c.Data)
	}
	return buf.Bytes(), contiguous
}
