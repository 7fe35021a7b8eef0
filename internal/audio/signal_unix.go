//go:build unix

package audio

import (
	"fmt"
	"os"
	"syscall"
)

func suspend(p *os.Process) error {
	if err := p.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("failed to pause ffmpeg: %w", err)
	}
	return nil
}

func resume(p *os.Process) error {
	if err := p.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("failed to resume ffmpeg: %w", err)
	}
	return nil
}
