package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrUnauthenticated is the only fatal error kind: the connection is closed.
	ErrUnauthenticated = fmt.Errorf("unauthenticated")

	ErrInvalidRoomID  = fmt.Errorf("invalid room id")
	ErrInvalidPayload = fmt.Errorf("invalid payload")
	ErrRoomNotFound   = fmt.Errorf("room not found")
	ErrUserNotFound   = fmt.Errorf("user not found")
	ErrSenderNotFound = fmt.Errorf("sender not found")

	// Per-operation failure kinds. They wrap the underlying storage error and
	// are reported to the requesting connection only.
	ErrDeliveryFailed = fmt.Errorf("failed to send message")
	ErrJoinFailed     = fmt.Errorf("failed to join room")
	ErrLeaveFailed    = fmt.Errorf("failed to leave room")
	ErrHistoryFailed  = fmt.Errorf("failed to load history")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// Wire maps an internal error onto the message carried by the unicast error
// event. Root causes stay in the logs, never on the wire.
func Wire(err error) string {
	switch {
	case stderrors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case stderrors.Is(err, ErrInvalidRoomID):
		return "invalid room id"
	case stderrors.Is(err, ErrInvalidPayload):
		return "invalid payload"
	case stderrors.Is(err, ErrDeliveryFailed):
		return "failed to send message"
	case stderrors.Is(err, ErrJoinFailed):
		return "failed to join room"
	case stderrors.Is(err, ErrLeaveFailed):
		return "failed to leave room"
	case stderrors.Is(err, ErrHistoryFailed):
		return "failed to load history"
	default:
		return "internal error"
	}
}
