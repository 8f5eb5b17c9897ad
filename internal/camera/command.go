package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CommandSource shells out to an external capture tool (fswebcam and
// friends) that writes a JPEG to the path appended as its last argument.
type CommandSource struct {
	command []string
	timeout time.Duration
}

// NewCommandSource parses the configured capture command line.
func NewCommandSource(commandLine string, timeout time.Duration) *CommandSource {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &CommandSource{
		command: strings.Fields(commandLine),
		timeout: timeout,
	}
}

var _ Source = (*CommandSource)(nil)

// Grab runs the capture command and reads the produced file back.
func (s *CommandSource) Grab(ctx context.Context) (*Frame, error) {
	if len(s.command) == 0 {
		return nil, fmt.Errorf("capture command not configured")
	}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("ponto-frame-%d.jpg", time.Now().UnixNano()))
	defer func() {
		_ = os.Remove(outPath)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string{}, s.command[1:]...), outPath)
	cmd := exec.CommandContext(ctx, s.command[0], args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("capture command failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read captured frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("capture command produced empty frame")
	}

	return &Frame{
		Data:       data,
		CapturedAt: time.Now().UTC(),
		Source:     s.command[0],
	}, nil
}
