package domain

import (
	"context"
	"errors"
)

// Task is a unit of background work run by a worker queue.
// MaxAttempts of zero means the queue default.
type Task struct {
	Name        string
	Shop        string
	MaxAttempts int
	Run         func(ctx context.Context) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
