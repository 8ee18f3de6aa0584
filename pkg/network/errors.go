package network

import (
	"context"
	"errors"
	"fmt"
)

// ErrSuperseded is the cancellation cause of a query that was replaced by a
// newer query for the same view.
var ErrSuperseded = errors.New("query superseded by a newer request")

// UpstreamError reports a failing store or catalog read. The query produced no
// result at all; it is safe to retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream failure: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable is always true; the type exists so transports can tell data layer
// failures apart from caller errors.
func (e *UpstreamError) Retryable() bool {
	return true
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsRetryable reports whether err is a data layer failure that may succeed on
// retry.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Retryable()
}
