package task

import "errors"

// Sentinel errors for expected conditions.
var (
	ErrNetwork         = errors.New("network failure")
	ErrProtocol        = errors.New("protocol failure")
	ErrCancelled       = errors.New("operation cancelled")
	ErrBadTransition   = errors.New("illegal state transition")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoOperation     = errors.New("session has no operation")
	ErrAlreadyPromoted = errors.New("session already promoted to a different id")
)

// Error kind labels carried on failed operations so hosts can branch
// without string matching. Cancellation is deliberately absent: a
// cancelled operation is a silent, successful abort, never a failure.
const (
	KindNetwork  = "network"
	KindProtocol = "protocol"
)

// Error is the structured failure recorded on an operation.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Kind + ": " + e.Message
}
