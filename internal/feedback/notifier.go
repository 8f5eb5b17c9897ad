package feedback

import (
	"context"
	"log/slog"
	"time"
)

// Severity classifies a notification for rendering.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one piece of user-facing feedback produced by a capture
// cycle: the toast text plus what the speech sink should say.
type Notification struct {
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Speech    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers feedback to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Multi fans a notification out to every registered sink.
type Multi struct {
	sinks []Notifier
}

func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Notify(ctx context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	for _, sink := range m.sinks {
		sink.Notify(ctx, n)
	}
}

// LogNotifier writes notifications to the agent log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	l.logger.Log(ctx, level, "feedback",
		slog.String("severity", string(n.Severity)),
		slog.String("title", n.Title),
		slog.String("message", n.Message),
	)
}
