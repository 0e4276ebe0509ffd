package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw encoded notification.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking; a full buffer yields ErrBackpressure.
	TrySend(Frame) error
	Close()
}
