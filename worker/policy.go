package worker

import (
	"errors"
	"time"
)

// RetryPolicy governs redelivery of failed invocations. It is consulted
// by the Dispatcher and is independent of any particular queue runtime.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry; each subsequent
	// retry doubles it.
	BaseDelay time.Duration
}

// DefaultRetryPolicy matches the task runtime defaults: three retries
// with exponential backoff starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
	}
}

// Delay returns the backoff before the retry following the given number
// of completed retries: BaseDelay * 2^retryCount.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return p.BaseDelay << uint(retryCount)
}

// Exhausted reports whether the given 1-based attempt number has used
// up the initial attempt plus every allowed retry.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxRetries
}

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the Dispatcher fails the invocation
// without retrying. Used for conditions retrying cannot fix, such as a
// comparison referencing a sequence number that does not exist.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error chain contains a permanent
// marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
