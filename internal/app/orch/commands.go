package orch

import (
	json "github.com/goccy/go-json"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
)

// Command is a decoded inbound event. The set of commands is closed.
type Command interface {
	name() string
}

type RegisterCmd struct {
	User domain.UserID
}

// JoinCmd with Create set is answered with room-created instead of joined.
type JoinCmd struct {
	Room   domain.RoomID
	User   domain.UserID // optional
	Create bool
}

// LeaveCmd with an empty Room leaves every joined room.
type LeaveCmd struct {
	Room domain.RoomID
}

type InviteCmd struct {
	From, To domain.UserID
}

// RespondCmd answers the call From (caller) placed to To (callee).
type RespondCmd struct {
	From, To domain.UserID
	Accepted bool
}

type SignalCmd struct {
	Dest Destination
	Data json.RawMessage
}

// HangupCmd with an empty User hangs up as the connection's registered identity.
type HangupCmd struct {
	User domain.UserID
}

type WhoAmICmd struct{}

type DisconnectCmd struct{}

func (RegisterCmd) name() string   { return "register" }
func (JoinCmd) name() string       { return "join" }
func (LeaveCmd) name() string      { return "leave" }
func (InviteCmd) name() string     { return "invite" }
func (RespondCmd) name() string    { return "respond" }
func (SignalCmd) name() string     { return "signal" }
func (HangupCmd) name() string     { return "hangup" }
func (WhoAmICmd) name() string     { return "whoami" }
func (DisconnectCmd) name() string { return "disconnect" }

type DestKind int

const (
	DestUser DestKind = iota + 1
	DestConn
	DestRoom
)

// Destination names exactly one of a user, a connection or a room.
type Destination struct {
	Kind DestKind
	User domain.UserID
	Conn core.ConnID
	Room domain.RoomID
}

func ToUser(u domain.UserID) Destination { return Destination{Kind: DestUser, User: u} }
func ToConn(c core.ConnID) Destination   { return Destination{Kind: DestConn, Conn: c} }
func ToRoom(r domain.RoomID) Destination { return Destination{Kind: DestRoom, Room: r} }
