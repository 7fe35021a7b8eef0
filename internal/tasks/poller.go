package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/minutes/internal/shared"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 60
)

// CheckFunc is one poll attempt. Attempts are numbered from 1.
type CheckFunc func(ctx context.Context, attempt int) (done bool, err error)

// Poller repeats a check at a fixed interval until it reports done, fails, or runs out of attempts.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between attempts; nil uses a timer that honors ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a poller with the default 5s interval and 60 attempts.
func NewPoller() *Poller {
	return &Poller{Interval: DefaultPollInterval, MaxAttempts: DefaultPollMaxAttempts}
}

// Poll runs check until it returns done or an error.
//
// Exhausting MaxAttempts returns an error wrapping [shared.ErrTranscriptionTimeout].
func (p *Poller) Poll(ctx context.Context, check CheckFunc) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPollMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", shared.ErrTranscriptionTimeout, attempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
