package signal

import (
	json "github.com/goccy/go-json"

	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
)

type callPayload struct {
	Type       string `json:"type"`
	From       string `json:"from"`
	To         string `json:"to"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Accepted   bool   `json:"accepted"`
}

// decodeInvite: from is optional and defaults to the registered identity.
func decodeInvite(data []byte) (orch.Command, error) {
	var p callPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	from, err := optionalUser(firstOf(p.From, p.FromUserID))
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseUserID(firstOf(p.To, p.ToUserID))
	if err != nil {
		return nil, err
	}
	return orch.InviteCmd{From: from, To: to}, nil
}

// decodeRespond: from is the caller, to the answering callee (optional).
func decodeRespond(data []byte) (orch.Command, error) {
	var p callPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	from, err := domain.ParseUserID(firstOf(p.From, p.FromUserID))
	if err != nil {
		return nil, err
	}
	to, err := optionalUser(firstOf(p.To, p.ToUserID))
	if err != nil {
		return nil, err
	}
	return orch.RespondCmd{From: from, To: to, Accepted: p.Accepted}, nil
}

func decodeHangup(data []byte) (orch.Command, error) {
	var p callPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	user, err := optionalUser(firstOf(p.From, p.FromUserID))
	if err != nil {
		return nil, err
	}
	return orch.HangupCmd{User: user}, nil
}

// decodeSignal picks exactly one destination: a user (to), a connection
// (toConn) or a room (roomId), in that order of precedence. data is opaque.
func decodeSignal(data []byte) (orch.Command, error) {
	type signalPayload struct {
		Type   string          `json:"type"`
		To     string          `json:"to"`
		ToConn string          `json:"toConn"`
		RoomID string          `json:"roomId"`
		Data   json.RawMessage `json:"data"`
	}
	var p signalPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	var dest orch.Destination
	switch {
	case p.To != "":
		u, err := domain.ParseUserID(p.To)
		if err != nil {
			return nil, err
		}
		dest = orch.ToUser(u)
	case p.ToConn != "":
		dest = orch.ToConn(core.ConnID(p.ToConn))
	case p.RoomID != "":
		r, err := domain.ParseRoomID(p.RoomID)
		if err != nil {
			return nil, err
		}
		dest = orch.ToRoom(r)
	default:
		return nil, ErrMissingDestination
	}
	return orch.SignalCmd{Dest: dest, Data: p.Data}, nil
}
