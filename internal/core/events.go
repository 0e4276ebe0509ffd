package core

import (
	json "github.com/goccy/go-json"

	"github.com/dkeye/callrelay/internal/domain"
)

type EventType string

const (
	EventRegistered   EventType = "registered"
	EventJoined       EventType = "joined"
	EventRoomCreated  EventType = "room-created"
	EventPeerJoined   EventType = "peer-joined"
	EventPeerLeft     EventType = "peer-left"
	EventLeft         EventType = "left"
	EventIncomingCall EventType = "incoming-call"
	EventCallResponse EventType = "call-response"
	EventUserOffline  EventType = "user-offline"
	EventHangup       EventType = "hangup"
	EventSignal       EventType = "signal"
	EventWhoAmI       EventType = "whoami"
	EventPong         EventType = "pong"
	EventError        EventType = "error"
)

// Hangup reasons.
const (
	ReasonHangup       = "hangup"
	ReasonCancelled    = "cancelled"
	ReasonDeclined     = "declined"
	ReasonDisconnected = "disconnected"
)

// Event is an outbound notification. Payload data is carried unchanged.
type Event struct {
	Type         EventType       `json:"type"`
	From         domain.UserID   `json:"from,omitempty"`
	FromConn     ConnID          `json:"fromConn,omitempty"`
	To           domain.UserID   `json:"to,omitempty"`
	User         domain.UserID   `json:"userId,omitempty"`
	Conn         ConnID          `json:"connId,omitempty"`
	Room         domain.RoomID   `json:"roomId,omitempty"`
	Rooms        []domain.RoomID `json:"rooms,omitempty"`
	Call         domain.CallID   `json:"callId,omitempty"`
	Accepted     *bool           `json:"accepted,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Participants []Participant   `json:"participants,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
}

func (e Event) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Error: msg}
}
