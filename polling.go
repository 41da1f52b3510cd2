package docutray

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// Status is the lifecycle state of an asynchronous operation.
type Status string

const (
	StatusEnqueued   Status = "ENQUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusError      Status = "ERROR"
)

// Terminal reports whether the status is final. An ERROR status is a
// completed operation, not a transport failure.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Polling defaults.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// PollOptions controls how Wait polls an asynchronous operation.
type PollOptions struct {
	// Interval between status fetches (default: 2s).
	Interval time.Duration

	// Timeout bounds the whole wait (default: 5m). Expiry returns a
	// *PollTimeoutError, distinct from per-request transport timeouts.
	Timeout time.Duration

	// OnPoll, when set, is invoked after every status fetch.
	OnPoll func(operationID string, status Status)
}

// PollTimeoutError reports that an operation did not reach a terminal
// status within the polling timeout. The operation keeps running server
// side; its status can still be fetched later.
type PollTimeoutError struct {
	OperationID string
	Timeout     time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("docutray: operation %s did not complete within %s", e.OperationID, e.Timeout)
}

func (e *PollTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// pollable is implemented by the asynchronous status types.
type pollable interface {
	pollID() string
	pollStatus() Status
}

var errPollPending = errors.New("docutray: operation still running")

// waitForCompletion polls fetch at a constant interval until the status is
// terminal, the timeout expires or the context is canceled. An initial
// status that is already terminal returns immediately without any fetch.
// Transport errors abort the wait.
func waitForCompletion[T pollable](ctx context.Context, initial T, fetch func(context.Context) (T, error), opts PollOptions, logger hclog.Logger) (T, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	if initial.pollStatus().Terminal() {
		return initial, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	current := initial
	polls := 0

	operation := func() error {
		next, err := fetch(waitCtx)
		if err != nil {
			return backoff.Permanent(err)
		}

		current = next
		polls++

		logger.Debug("polled operation status",
			"operation_id", next.pollID(),
			"status", next.pollStatus(),
			"polls", polls,
		)

		if opts.OnPoll != nil {
			opts.OnPoll(next.pollID(), next.pollStatus())
		}

		if next.pollStatus().Terminal() {
			return nil
		}

		return errPollPending
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx)
	if err := backoff.Retry(operation, policy); err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return current, &PollTimeoutError{OperationID: initial.pollID(), Timeout: timeout}
		}

		return current, err
	}

	return current, nil
}
