package service

import (
	"errors"
	"fmt"
)

var (
	ErrNoNodes            = errors.New("at least one node is required")
	ErrUpstreamNotRunning = errors.New("upstream service is not running")
	ErrNotReady           = errors.New("node did not become ready")
)

// StartupError reports a single node that failed to reach ready state. Any
// resources the node acquired have been released by the time it surfaces.
type StartupError struct {
	Kind  Kind
	Index int
	Port  int
	Cause error
}

func (e *StartupError) Error() string {
	if e.Port != 0 {
		return fmt.Sprintf("start %s node %d on port %d: %v", e.Kind, e.Index, e.Port, e.Cause)
	}
	return fmt.Sprintf("start %s node %d: %v", e.Kind, e.Index, e.Cause)
}

func (e *StartupError) Unwrap() error {
	return e.Cause
}

func NewStartupError(kind Kind, index, port int, cause error) error {
	return &StartupError{Kind: kind, Index: index, Port: port, Cause: cause}
}

func AsStartupError(err error) (*StartupError, bool) {
	var se *StartupError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// PartialStartupError reports a multi-node group where one node failed.
// Started is the number of nodes that had been started by the same call and
// were torn down again; Cause is the first failure, usually a *StartupError.
type PartialStartupError struct {
	Kind     Kind
	Started  int
	Cause    error
	Teardown error
}

func (e *PartialStartupError) Error() string {
	msg := fmt.Sprintf("%s group: %d node(s) started before failure and were stopped: %v", e.Kind, e.Started, e.Cause)
	if e.Teardown != nil {
		msg += fmt.Sprintf(" (teardown: %v)", e.Teardown)
	}
	return msg
}

func (e *PartialStartupError) Unwrap() error {
	return e.Cause
}

func AsPartialStartupError(err error) (*PartialStartupError, bool) {
	var pe *PartialStartupError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
