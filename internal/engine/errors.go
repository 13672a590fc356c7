package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a contained per-event failure. The dispatcher logs it and
// moves on to the next event.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	// Seq is the event being processed.
	Seq int64
	// ChannelID is where the event came from or was going.
	ChannelID string
	Details   map[string]string
	Err       error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownEvent is an event type the dispatcher does not handle.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"
	// ErrCodeHandlerPanic is a recovered panic in a handler or task.
	ErrCodeHandlerPanic RuntimeErrorCode = "HANDLER_PANIC"
	// ErrCodeDeliveryFailed is an outbound send or reaction that failed.
	ErrCodeDeliveryFailed RuntimeErrorCode = "DELIVERY_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ChannelID != "" {
		msg += fmt.Sprintf(" (seq=%d, channel=%s)", e.Seq, e.ChannelID)
	} else if e.Seq != 0 {
		msg += fmt.Sprintf(" (seq=%d)", e.Seq)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsDeliveryError reports whether err is a delivery failure.
func IsDeliveryError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeDeliveryFailed
}

// IsPanicError reports whether err is a recovered handler panic.
func IsPanicError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeHandlerPanic
}

func newDeliveryError(seq int64, channelID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "outbound delivery failed",
		Seq:       seq,
		ChannelID: channelID,
		Err:       err,
	}
}

func newPanicError(seq int64, ev Event, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeHandlerPanic,
		Message:   fmt.Sprintf("panic while processing %s event: %v", ev.Type, recovered),
		Seq:       seq,
		ChannelID: ev.Inbound.ChannelID,
	}
}
