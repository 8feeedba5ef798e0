package graphload

import (
	"errors"
	"fmt"
)

// ErrActionRejected means the server replied an action with an error or with a broken reply.
var ErrActionRejected = errors.New("action is rejected")

// ErrPhase means a Session method is called out of order.
var ErrPhase = errors.New("out of phase")

// ConstructionAbortedError is returned when a graph construction fails and is aborted.
//
// It unwraps to the error which caused the abort.
type ConstructionAbortedError struct {
	Graph string

	// Err caused the abort.
	Err error

	// AbortErr is the error on sending ABORT, if any.
	AbortErr error
}

func (e *ConstructionAbortedError) Error() string {
	if e.AbortErr != nil {
		return fmt.Sprintf(
			"construction of graph %s is aborted: %s (and abort also failed: %s)",
			e.Graph, e.Err, e.AbortErr,
		)
	}
	return fmt.Sprintf("construction of graph %s is aborted: %s", e.Graph, e.Err)
}

func (e *ConstructionAbortedError) Unwrap() error {
	return e.Err
}
