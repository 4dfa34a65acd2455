package platform

import (
	"errors"
	"fmt"
)

var (
	ErrWindowGone      = errors.New("window no longer exists")
	ErrProcessGone     = errors.New("process no longer exists")
	ErrNoCaptureSource = errors.New("window has no capturable source")
)

// EnumerationError reports that listing one process's windows failed.
// The process is skipped; discovery continues.
type EnumerationError struct {
	PID int
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate windows of pid %d: %v", e.PID, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// SubscriptionError reports that a process could not be observed. Its windows
// stay unobservable until the next full refresh.
type SubscriptionError struct {
	PID int
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe to pid %d: %v", e.PID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// FocusError reports a failed raise or activation.
type FocusError struct {
	Handle Handle
	Err    error
}

func (e *FocusError) Error() string {
	return fmt.Sprintf("focus window %d: %v", e.Handle, e.Err)
}

func (e *FocusError) Unwrap() error { return e.Err }

// CaptureError reports a failed preview capture.
type CaptureError struct {
	Label string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %q: %v", e.Label, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
