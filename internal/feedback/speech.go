package feedback

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const speechTimeout = 10 * time.Second

// Speech speaks notifications through an external synthesizer command
// (espeak, say, piper). The spoken text is appended as the last argument.
// Speaking is fire-and-forget; a broken synthesizer must never stall the
// capture loop.
type Speech struct {
	command []string
	logger  *slog.Logger
}

func NewSpeech(commandLine string, logger *slog.Logger) *Speech {
	return &Speech{
		command: strings.Fields(commandLine),
		logger:  logger,
	}
}

var _ Notifier = (*Speech)(nil)

func (s *Speech) Notify(ctx context.Context, n Notification) {
	if len(s.command) == 0 || n.Speech == "" {
		return
	}

	go func(text string) {
		ctx, cancel := context.WithTimeout(context.Background(), speechTimeout)
		defer cancel()

		args := append(append([]string{}, s.command[1:]...), text)
		cmd := exec.CommandContext(ctx, s.command[0], args...)
		if err := cmd.Run(); err != nil {
			s.logger.Warn("speech command failed",
				slog.String("command", s.command[0]),
				slog.Any("error", err),
			)
		}
	}(n.Speech)
}
