package fetch

import (
	"errors"
	"fmt"

	"staywatch/internal/ratelimit"
)

// TransportError is a network-level failure (connect, timeout, 5xx). It is
// transient: the scheduler retries it with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BlockedError means the remote answered with a defense response (CAPTCHA,
// challenge page, 403/429, skeleton payload). It triggers a host cooldown and
// a requeue; it is not a task failure.
type BlockedError struct {
	Reason     string
	StatusCode int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by remote (%s, status %d)", e.Reason, e.StatusCode)
}

// ParseError means the payload shape changed. Retrying will not fix a schema
// change, so the scheduler fails the task instead of retrying indefinitely.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error during %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrExhaustedRetries marks a task abandoned after its retry budget.
var ErrExhaustedRetries = errors.New("retries exhausted")

// IsBlocked reports whether err is a defense response.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsTransport reports whether err is a transient network failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsParse reports whether err is a payload-shape failure.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// GovernorOutcome maps a fetch error to the outcome reported to the governor.
func GovernorOutcome(err error) ratelimit.Outcome {
	switch {
	case err == nil:
		return ratelimit.OutcomeSuccess
	case IsBlocked(err):
		return ratelimit.OutcomeSoftBlock
	case IsTransport(err):
		return ratelimit.OutcomeHardError
	case IsParse(err):
		// the request itself went through
		return ratelimit.OutcomeSuccess
	}
	return ratelimit.OutcomeRejected
}
