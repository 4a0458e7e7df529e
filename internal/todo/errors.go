package todo

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTitle is returned when a create or save is attempted with a blank title.
	ErrEmptyTitle = errors.New("title is required")

	// ErrTaskCompleted is returned when edit is requested for a completed task.
	ErrTaskCompleted = errors.New("completed tasks cannot be edited")

	// ErrNoEditSession is returned by SaveEdit when no session is open for the task.
	ErrNoEditSession = errors.New("no edit session for task")

	// ErrNoPendingDelete is returned by ConfirmDelete when nothing awaits confirmation.
	ErrNoPendingDelete = errors.New("no delete pending")

	// ErrStaleResponse is returned when a newer request for the same task was issued
	// while this one was in flight. The response is discarded.
	ErrStaleResponse = errors.New("stale response discarded")
)

// TaskNotFoundError indicates the id is not in the local list.
type TaskNotFoundError struct {
	ID int64
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %d", e.ID)
}

// IsNoOp reports whether err is a local validation refusal rather than a failure.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrTaskCompleted) ||
		errors.Is(err, ErrNoEditSession) ||
		errors.Is(err, ErrNoPendingDelete)
}
