package signal

import (
	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/domain"
)

func decodeJoin(data []byte) (orch.Command, error) {
	type joinPayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		UserID string `json:"userId,omitempty"`
	}
	var p joinPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	room, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	user, err := optionalUser(p.UserID)
	if err != nil {
		return nil, err
	}
	return orch.JoinCmd{Room: room, User: user}, nil
}

func decodeCreateRoom(data []byte) (orch.Command, error) {
	cmd, err := decodeJoin(data)
	if err != nil {
		return nil, err
	}
	join := cmd.(orch.JoinCmd)
	join.Create = true
	return join, nil
}

// decodeLeave accepts a missing roomId, meaning every joined room.
func decodeLeave(data []byte) (orch.Command, error) {
	type leavePayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId,omitempty"`
	}
	var p leavePayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.RoomID == "" {
		return orch.LeaveCmd{}, nil
	}
	room, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	return orch.LeaveCmd{Room: room}, nil
}
