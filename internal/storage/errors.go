package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound         = errors.New("bot record not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("bot record already exists")
)

// TransientError wraps network and timeout failures. Safe to retry; this
// layer never retries on its own.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classify wraps err as transient when it looks like a connectivity problem.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &netErr):
		return &TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
