//go:build !unix

package audio

import (
	"fmt"
	"os"

	"github.com/desertthunder/minutes/internal/shared"
)

func suspend(*os.Process) error {
	return fmt.Errorf("%w: pausing capture", shared.ErrNotImplemented)
}

func resume(*os.Process) error {
	return fmt.Errorf("%w: resuming capture", shared.ErrNotImplemented)
}
