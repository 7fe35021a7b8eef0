// Package audio captures microphone audio with ffmpeg as a stream of WebM/Opus chunks.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/minutes/internal/shared"
)

const (
	DefaultChunkInterval = 5 * time.Second
	readSize             = 32 * 1024
)

// Capturer records the default input device through ffmpeg, emitting whatever ffmpeg has written
// every ChunkInterval. Concatenating the chunks in order yields the full WebM stream.
type Capturer struct {
	Binary        string
	Format        string
	Device        string
	ChunkInterval time.Duration
	LogPath       string

	logger *log.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	paused bool
	done   chan struct{}
}

// NewCapturer builds a capturer from the recorder config, picking a platform input when none is set.
func NewCapturer(cfg shared.RecorderConfig, logger *log.Logger) *Capturer {
	format, device := cfg.InputFormat, cfg.InputDevice
	if format == "" {
		format, device = defaultInput()
	}
	interval := time.Duration(cfg.ChunkSeconds) * time.Second
	if interval <= 0 {
		interval = DefaultChunkInterval
	}
	return &Capturer{
		Binary:        "ffmpeg",
		Format:        format,
		Device:        device,
		ChunkInterval: interval,
		logger:        shared.WithLogger(logger, "component", "audio"),
	}
}

func defaultInput() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// CheckFFmpeg verifies ffmpeg is on PATH.
func (c *Capturer) CheckFFmpeg() error {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return fmt.Errorf("%w: ffmpeg not found, install it with your package manager (e.g. brew install ffmpeg)", shared.ErrMissingConfig)
	}
	return nil
}

// Args is the ffmpeg command line: mono Opus in a WebM container written to stdout.
func (c *Capturer) Args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostats",
		"-f", c.Format,
		"-i", c.Device,
		"-ac", "1",
		"-ar", "48000",
		"-c:a", "libopus",
		"-b:a", "32k",
		"-f", "webm",
		"pipe:1",
	}
}

// Start launches ffmpeg. The returned channel closes once ffmpeg exits and the last chunk is delivered.
func (c *Capturer) Start(ctx context.Context) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return nil, fmt.Errorf("%w: capture already started", shared.ErrInvalidState)
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	if c.LogPath != "" {
		if f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			cmd.Stderr = f
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	c.cmd, c.stdin, c.done = cmd, stdin, make(chan struct{})
	c.logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "format", c.Format, "device", c.Device)

	out := make(chan []byte, 8)
	go func() {
		ChunkStream(stdout, c.ChunkInterval, out)
		err := cmd.Wait()
		if f, ok := cmd.Stderr.(*os.File); ok {
			f.Close()
		}
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("ffmpeg exited", "error", err)
		}
		close(c.done)
		close(out)
	}()
	return out, nil
}

// Pause suspends the ffmpeg process.
func (c *Capturer) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.paused {
		return nil
	}
	if err := suspend(c.cmd.Process); err != nil {
		return err
	}
	c.paused = true
	return nil
}

// Resume continues a paused ffmpeg process.
func (c *Capturer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || !c.paused {
		return nil
	}
	if err := resume(c.cmd.Process); err != nil {
		return err
	}
	c.paused = false
	return nil
}

// Stop asks ffmpeg to finish writing and exit, killing it if it has not exited after five seconds.
func (c *Capturer) Stop() error {
	c.mu.Lock()
	cmd, stdin, done, paused := c.cmd, c.stdin, c.done, c.paused
	c.mu.Unlock()
	if cmd == nil {
		return nil
	}
	if paused {
		_ = c.Resume()
	}

	// "q" on stdin is ffmpeg's graceful quit on every platform.
	if _, err := io.WriteString(stdin, "q"); err != nil && !errors.Is(err, os.ErrClosed) {
		c.logger.Debug("failed to send quit to ffmpeg", "error", err)
	}
	stdin.Close()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill ffmpeg: %w", err)
		}
		return nil
	}
}

// ChunkStream reads r until EOF, sending what has accumulated every interval. The final partial chunk is
// sent before returning. It does not close out.
func ChunkStream(r io.Reader, interval time.Duration, out chan<- []byte) {
	reads := make(chan []byte)
	go func() {
		defer close(reads)
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				reads <- bytes.Clone(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []byte
	for {
		select {
		case data, ok := <-reads:
			if !ok {
				if len(pending) > 0 {
					out <- pending
				}
				return
			}
			pending = append(pending, data...)
		case <-ticker.C:
			if len(pending) > 0 {
				out <- pending
				pending = nil
			}
		}
	}
}
