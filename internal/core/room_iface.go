package core

import "github.com/dkeye/callrelay/internal/domain"

// Participant is a read-only view of a room member (no transport fields).
type Participant struct {
	Conn ConnID        `json:"connId"`
	User domain.UserID `json:"userId,omitempty"`
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// Departure reports a room a connection was removed from.
type Departure struct {
	Room      domain.RoomID
	Remaining []ConnID
}
