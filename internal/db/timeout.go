package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that an operation did not finish within its budget.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Timeout)
}

// IsTimeout reports whether err's chain contains a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// WithTimeout runs op and returns its result, or a *TimeoutError if budget
// elapses first. On timeout op keeps running in the background with a
// cancelled context and its result is discarded. Cancellation of the parent
// ctx is returned as ctx.Err(), not as a timeout.
func WithTimeout[T any](ctx context.Context, operation string, budget time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	opCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		val, err := op(opCtx)
		done <- result{val: val, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && budgetExpired(ctx, opCtx) {
			return zero, &TimeoutError{Operation: operation, Timeout: budget}
		}
		return r.val, r.err
	case <-opCtx.Done():
		if budgetExpired(ctx, opCtx) {
			return zero, &TimeoutError{Operation: operation, Timeout: budget}
		}
		return zero, ctx.Err()
	}
}

func budgetExpired(parent, opCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded)
}

// Run acquires a connection from m and runs fn against it under budget.
func Run[T any](ctx context.Context, m *Manager, operation string, budget time.Duration, fn func(ctx context.Context, conn Conn) (T, error)) (T, error) {
	conn, err := m.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	val, err := WithTimeout(ctx, operation, budget, func(ctx context.Context) (T, error) {
		return fn(ctx, conn)
	})
	if err != nil && IsTimeout(err) {
		m.reportTimeout(operation, budget)
	}
	return val, err
}

// Exec is Run for operations without a result value.
func Exec(ctx context.Context, m *Manager, operation string, budget time.Duration, fn func(ctx context.Context, conn Conn) error) error {
	_, err := Run(ctx, m, operation, budget, func(ctx context.Context, conn Conn) (struct{}, error) {
		return struct{}{}, fn(ctx, conn)
	})
	return err
}
