package worker

import (
	"context"
	"log/slog"
	"time"
)

// Failure records an invocation the dispatcher gave up on, either
// because its error was permanent or because retries were exhausted.
type Failure struct {
	Kind     string
	Body     []byte
	Attempts int
	Reason   string
	Err      error
	At       time.Time
}

// FailureSink receives permanently failed invocations. Implementations
// must not block for long; recording happens on the worker goroutine.
type FailureSink interface {
	Record(ctx context.Context, failure Failure)
}

// LogSink is a FailureSink that writes failures to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "failure-sink")}
}

func (s *LogSink) Record(ctx context.Context, failure Failure) {
	s.logger.Error("invocation failed permanently",
		"kind", failure.Kind,
		"attempts", failure.Attempts,
		"reason", failure.Reason,
		"err", failure.Err,
	)
}
