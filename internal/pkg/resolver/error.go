package resolver

import "fmt"

const (
	ReasonChannelNotFound             = "ChannelNotFound"
	ReasonAmbiguousHead               = "AmbiguousHead"
	ReasonNoHead                      = "NoHead"
	ReasonStartingVersionNotReachable = "StartingVersionNotReachable"
	ReasonNoUpgradePath               = "NoUpgradePath"
	ReasonCycleDetected               = "CycleDetected"
)

// Sentinels for errors.Is, matched by Reason.
var (
	ErrChannelNotFound             = &Error{Reason: ReasonChannelNotFound}
	ErrAmbiguousHead               = &Error{Reason: ReasonAmbiguousHead}
	ErrNoHead                      = &Error{Reason: ReasonNoHead}
	ErrStartingVersionNotReachable = &Error{Reason: ReasonStartingVersionNotReachable}
	ErrNoUpgradePath               = &Error{Reason: ReasonNoUpgradePath}
	ErrCycleDetected               = &Error{Reason: ReasonCycleDetected}
)

// Error is returned when an upgrade path cannot be resolved.
type Error struct {
	// Reason is one of the Reason constants.
	Reason string

	// Message describes the failing package and channel.
	Message string
}

// Error serializes the error as a string, to satisfy the error interface.
func (err *Error) Error() string {
	return fmt.Sprintf("%s: %s", err.Reason, err.Message)
}

func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == err.Reason
}

func newError(reason, format string, a ...any) *Error {
	return &Error{Reason: reason, Message: fmt.Sprintf(format, a...)}
}
