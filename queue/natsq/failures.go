package natsq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chronolens/chronolens/worker"
)

// DefaultFailureSubject is where permanently failed invocations are
// published for operator tooling to pick up.
const DefaultFailureSubject = "chronolens.failures"

// failureMessage is the published wire form of a worker.Failure.
type failureMessage struct {
	Kind     string          `json:"kind"`
	Body     json.RawMessage `json:"body"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason"`
	Error    string          `json:"error,omitempty"`
	At       time.Time       `json:"at"`
}

// FailureSink publishes permanently failed invocations to a NATS
// subject, keeping the structured log record as well. Publish errors
// fall back to logging only; a failure report must never be lost to a
// flaky broker.
type FailureSink struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewFailureSink creates a sink publishing to subject (empty uses
// DefaultFailureSubject).
func NewFailureSink(conn *nats.Conn, subject string, logger *slog.Logger) *FailureSink {
	if subject == "" {
		subject = DefaultFailureSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FailureSink{
		conn:    conn,
		subject: subject,
		logger:  logger.With("component", "failure-sink"),
	}
}

// Record implements worker.FailureSink.
func (s *FailureSink) Record(ctx context.Context, failure worker.Failure) {
	s.logger.Error("invocation failed permanently",
		"kind", failure.Kind,
		"attempts", failure.Attempts,
		"reason", failure.Reason,
		"err", failure.Err,
	)

	msg := failureMessage{
		Kind:     failure.Kind,
		Attempts: failure.Attempts,
		Reason:   failure.Reason,
		At:       failure.At,
	}
	// Malformed invocation bodies are not valid JSON; quote them so the
	// report still round-trips.
	if json.Valid(failure.Body) {
		msg.Body = json.RawMessage(failure.Body)
	} else if quoted, err := json.Marshal(string(failure.Body)); err == nil {
		msg.Body = quoted
	}
	if failure.Err != nil {
		msg.Error = failure.Err.Error()
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to encode failure report", "err", err)
		return
	}
	if err := s.conn.Publish(s.subject, encoded); err != nil {
		s.logger.Error("failed to publish failure report",
			"subject", s.subject, "err", err)
	}
}
