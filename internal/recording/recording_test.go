package recording

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
	"github.com/desertthunder/minutes/internal/testing/fakes"
)

func setupBackup(t *testing.T) *BackupStore {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create backup database: %v", err)
	}
	store := NewBackupStore(db, nil)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		t.Fatalf("failed to init backup store: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return store
}

// fakeCapturer emits whatever the test sends on Chunks.
type fakeCapturer struct {
	Chunks   chan []byte
	StartErr error

	mu      sync.Mutex
	paused  int
	resumed int
	stopped bool
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{Chunks: make(chan []byte)}
}

func (f *fakeCapturer) Start(ctx context.Context) (<-chan []byte, error) {
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	return f.Chunks, nil
}

func (f *fakeCapturer) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused++
	return nil
}

func (f *fakeCapturer) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed++
	return nil
}

func (f *fakeCapturer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.Chunks)
	}
	return nil
}

// fakeRoute is the server upload route. Err, when set, decides the outcome of each call.
type fakeRoute struct {
	mu    sync.Mutex
	Err   func(call int) error
	Calls int
	Names []string
	store *fakes.ObjectStore
}

func (f *fakeRoute) UploadObject(ctx context.Context, userID, sessionID, name string, data []byte) (string, error) {
	f.mu.Lock()
	f.Calls++
	call := f.Calls
	f.Names = append(f.Names, name)
	f.mu.Unlock()

	if f.Err != nil {
		if err := f.Err(call); err != nil {
			return "", err
		}
	}
	path := userID + "/" + sessionID + "/" + name
	if f.store != nil {
		if err := f.store.Upload(ctx, path, data, "audio/webm"); err != nil {
			return "", err
		}
	}
	return path, nil
}

// blockingRoute holds every upload until its context is cancelled.
type blockingRoute struct {
	entered chan struct{}
}

func (b *blockingRoute) UploadObject(ctx context.Context, userID, sessionID, name string, data []byte) (string, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) sleep(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays = append(d.delays, dur)
	return nil
}

func noDelay(context.Context, time.Duration) error { return nil }
