package recording

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/minutes/internal/models"
	"github.com/desertthunder/minutes/internal/services"
	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/testing/fakes"
)

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock                   { return &clock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)} }

func newTestController(t *testing.T, route UploadRoute, store *fakes.ObjectStore, backup *BackupStore) (*Controller, *fakeCapturer) {
	t.Helper()
	capturer := newFakeCapturer()
	uploader := NewUploader(route, store, nil).WithDelay(noDelay)
	return NewController("u1", capturer, uploader, backup, nil), capturer
}

func TestControllerStart(t *testing.T) {
	ctx := context.Background()

	t.Run("Requires Project", func(t *testing.T) {
		c, _ := newTestController(t, nil, fakes.NewObjectStore(), nil)
		if err := c.Start(ctx, ""); !errors.Is(err, shared.ErrMissingProject) {
			t.Errorf("expected ErrMissingProject, got %v", err)
		}
		if c.State() != StateIdle {
			t.Errorf("expected idle, got %s", c.State())
		}
	})

	t.Run("Only From Idle", func(t *testing.T) {
		c, _ := newTestController(t, nil, fakes.NewObjectStore(), nil)
		if err := c.Start(ctx, "p1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Start(ctx, "p1"); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}

		if _, err := c.Stop(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := c.Start(ctx, "p1"); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected stopped to be terminal, got %v", err)
		}
	})

	t.Run("Capture Device Failure", func(t *testing.T) {
		c, capturer := newTestController(t, nil, fakes.NewObjectStore(), nil)
		capturer.StartErr = errors.New("no microphone")
		if err := c.Start(ctx, "p1"); err == nil {
			t.Fatal("expected an error")
		}
		if c.State() != StateIdle {
			t.Errorf("expected idle, got %s", c.State())
		}
	})
}

func TestControllerRecording(t *testing.T) {
	ctx := context.Background()

	t.Run("Stop Waits For Chunks", func(t *testing.T) {
		store := fakes.NewObjectStore()
		backup := setupBackup(t)
		c, capturer := newTestController(t, &fakeRoute{store: store}, store, backup)

		if err := c.Start(ctx, "p1"); err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		for _, chunk := range []string{"one|", "two|", "three"} {
			capturer.Chunks <- []byte(chunk)
		}

		capture, err := c.Stop(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.State() != StateStopped {
			t.Errorf("expected stopped, got %s", c.State())
		}

		blob, contiguous := capture.Blob()
		if string(blob) != "one|two|three" || !contiguous {
			t.Errorf("unexpected blob %q (contiguous %v)", blob, contiguous)
		}
		if !capture.AllUploaded() || capture.ProjectID != "p1" || capture.UserID != "u1" {
			t.Errorf("unexpected capture %+v", capture)
		}

		stats := c.Stats()
		if stats.Captured != 3 || stats.BackedUp != 3 || stats.Uploaded != 3 {
			t.Errorf("unexpected stats %+v", stats)
		}
		for i := range 3 {
			if _, ok := store.Objects[models.ChunkPath("u1", c.SessionID(), i)]; !ok {
				t.Errorf("expected chunk %d in storage", i)
			}
		}

		session, err := backup.GetSession(ctx, c.SessionID())
		if err != nil {
			t.Fatalf("expected backup session, got %v", err)
		}
		if session.Status != BackupStopped || session.ChunkCount != 3 {
			t.Errorf("unexpected backup session %+v", session)
		}
		chunks, _ := backup.GetChunks(ctx, c.SessionID())
		for _, ch := range chunks {
			if !ch.Uploaded {
				t.Errorf("expected chunk %d marked uploaded", ch.Index)
			}
		}
	})

	t.Run("Upload Failures Do Not Stop Capture", func(t *testing.T) {
		store := fakes.NewObjectStore()
		route := &fakeRoute{store: store, Err: func(call int) error {
			return &services.APIError{Service: "minutes", StatusCode: http.StatusBadGateway}
		}}
		backup := setupBackup(t)
		c, capturer := newTestController(t, route, store, backup)

		_ = c.Start(ctx, "p1")
		capturer.Chunks <- []byte("a")
		capturer.Chunks <- []byte("b")

		capture, err := c.Stop(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(capture.Chunks) != 2 || capture.AllUploaded() {
			t.Errorf("expected two local chunks that never uploaded, got %+v", capture.Chunks)
		}

		stats := c.Stats()
		if stats.UploadFailed != 2 || stats.BackedUp != 2 {
			t.Errorf("unexpected stats %+v", stats)
		}
		for range 2 {
			select {
			case e := <-c.UploadErrs:
				if e.Err == nil {
					t.Error("expected an upload error")
				}
			default:
				t.Fatal("expected an upload error to be reported")
			}
		}
	})

	t.Run("Backup Failures Do Not Stop Upload", func(t *testing.T) {
		store := fakes.NewObjectStore()
		backup := setupBackup(t)
		backup.Close()
		c, capturer := newTestController(t, nil, store, backup)

		_ = c.Start(ctx, "p1")
		capturer.Chunks <- []byte("a")
		if _, err := c.Stop(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stats := c.Stats()
		if stats.Uploaded != 1 || stats.BackupFailed != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
		if len(c.BackupErrs) != 1 {
			t.Errorf("expected one backup error, got %d", len(c.BackupErrs))
		}
	})

	t.Run("Pause And Resume", func(t *testing.T) {
		clk := newClock()
		c, capturer := newTestController(t, nil, fakes.NewObjectStore(), nil)
		c.now = clk.now

		if err := c.Pause(); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected pause from idle to fail, got %v", err)
		}

		_ = c.Start(ctx, "p1")
		clk.advance(10 * time.Second)
		if err := c.Resume(); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected resume while recording to fail, got %v", err)
		}
		if err := c.Pause(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		clk.advance(30 * time.Second)
		if got := c.Elapsed(); got != 10*time.Second {
			t.Errorf("expected paused time excluded, got %v", got)
		}
		if err := c.Resume(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		clk.advance(5 * time.Second)
		if got := c.Elapsed(); got != 15*time.Second {
			t.Errorf("expected 15s, got %v", got)
		}
		if capturer.paused != 1 || capturer.resumed != 1 {
			t.Errorf("expected device paused and resumed once, got %d/%d", capturer.paused, capturer.resumed)
		}

		_ = c.Pause()
		clk.advance(time.Minute)
		capture, err := c.Stop(ctx)
		if err != nil {
			t.Fatalf("expected stop from paused to succeed, got %v", err)
		}
		if capture.Duration != 15*time.Second {
			t.Errorf("expected 15s duration, got %v", capture.Duration)
		}
		if capturer.resumed != 2 {
			t.Error("expected the device to be resumed before stopping")
		}
	})

	t.Run("Discard", func(t *testing.T) {
		store := fakes.NewObjectStore()
		backup := setupBackup(t)
		c, capturer := newTestController(t, nil, store, backup)

		_ = c.Start(ctx, "p1")
		capturer.Chunks <- []byte("a")
		c.Discard(ctx)

		if c.State() != StateStopped {
			t.Errorf("expected stopped, got %s", c.State())
		}
		if !capturer.stopped {
			t.Error("expected capture device to be stopped")
		}
		if _, err := c.Stop(ctx); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected stop after discard to fail, got %v", err)
		}
	})

	t.Run("Discard Abandons In-Flight Chunks", func(t *testing.T) {
		for i := range 20 {
			store := fakes.NewObjectStore()
			backup := setupBackup(t)
			route := &blockingRoute{entered: make(chan struct{}, 1)}
			c, capturer := newTestController(t, route, store, backup)

			if err := c.Start(ctx, "p1"); err != nil {
				t.Fatalf("failed to start: %v", err)
			}
			capturer.Chunks <- []byte("a")
			<-route.entered
			c.Discard(ctx)

			found, err := FindRecoverable(ctx, backup)
			if err != nil {
				t.Fatalf("failed to list recoverable sessions: %v", err)
			}
			if len(found) != 0 {
				t.Fatalf("run %d: discarded session offered for recovery: %+v", i, found)
			}
			if chunks, _ := backup.GetChunks(ctx, c.SessionID()); len(chunks) != 0 {
				t.Errorf("run %d: expected no backed up chunks, got %d", i, len(chunks))
			}
			if len(store.Objects) != 0 {
				t.Errorf("run %d: expected nothing uploaded, got %d objects", i, len(store.Objects))
			}
			if stats := c.Stats(); stats.Uploaded != 0 || stats.UploadFailed != 0 {
				t.Errorf("run %d: expected abandoned upload to go uncounted, got %+v", i, stats)
			}
			if len(c.UploadErrs) != 0 {
				t.Errorf("run %d: expected no upload errors after discard", i)
			}
		}
	})
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	backup := setupBackup(t)

	// a recording that crashed after three chunks, with chunk 1 never uploaded
	_ = backup.SaveSession(ctx, BackupSession{ID: "s1", UserID: "u1", ProjectID: "p1", Status: BackupRecording, DurationSeconds: 15})
	for _, i := range []int{2, 0, 1} {
		_ = backup.SaveChunk(ctx, ChunkRecord{SessionID: "s1", Index: i, Data: []byte{"abc"[i]}, Uploaded: i != 1})
	}

	found, err := FindRecoverable(ctx, backup)
	if err != nil || len(found) != 1 || found[0].ID != "s1" {
		t.Fatalf("expected s1 to be recoverable, got %+v (%v)", found, err)
	}

	capture, err := Recover(ctx, backup, "s1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	blob, contiguous := capture.Blob()
	if !bytes.Equal(blob, []byte("abc")) || !contiguous {
		t.Errorf("expected abc, got %q", blob)
	}
	if !capture.Recovered || capture.AllUploaded() || capture.Duration != 15*time.Second || capture.ProjectID != "p1" {
		t.Errorf("unexpected capture %+v", capture)
	}

	session, _ := backup.GetSession(ctx, "s1")
	if session.Status != BackupStopped {
		t.Errorf("expected recovered session to be stopped, got %s", session.Status)
	}

	if _, err := Recover(ctx, backup, "missing"); !errors.Is(err, shared.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if found, _ := FindRecoverable(ctx, nil); found != nil {
		t.Error("expected nothing without a store")
	}
}
