package domain

import "time"

type CallID string

type CallStatus int

const (
	CallRinging CallStatus = iota
	CallAccepted
	CallRejected
	CallEnded
)

func (s CallStatus) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallAccepted:
		return "accepted"
	case CallRejected:
		return "rejected"
	case CallEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether a call in this status is pruned from the tracker.
func (s CallStatus) Terminal() bool {
	return s == CallRejected || s == CallEnded
}

// Call is one invite-to-resolution lifecycle between two identities.
type Call struct {
	ID        CallID     `json:"id"`
	Caller    UserID     `json:"caller"`
	Callee    UserID     `json:"callee"`
	Status    CallStatus `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (c Call) Involves(u UserID) bool {
	return c.Caller == u || c.Callee == u
}

// Peer returns the other participant of the call.
func (c Call) Peer(u UserID) (UserID, bool) {
	switch u {
	case c.Caller:
		return c.Callee, true
	case c.Callee:
		return c.Caller, true
	}
	return "", false
}
