package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned once transient failures exhaust the retry
	// budget.
	ErrUnavailable = errors.New("service unavailable")

	// ErrNoErrors is returned by the live contract when a log contains no
	// recognizable errors.
	ErrNoErrors = errors.New("no errors found in log")
)

// Kind separates failures worth retrying from ones that are not.
type Kind int

const (
	// KindHard failures (bad request, unparseable or schema-violating
	// responses) surface immediately.
	KindHard Kind = iota
	// KindTransient failures (timeouts, throttling, server errors) are
	// retried with backoff.
	KindTransient
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "hard"
}

// Error is a failure at the external service boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure of op.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Hard wraps err as a non-retryable failure of op.
func Hard(op string, err error) *Error {
	return &Error{Kind: KindHard, Op: op, Err: err}
}

// IsTransient reports whether err carries a transient service Error.
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTransient
}
