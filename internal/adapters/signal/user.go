package signal

import (
	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/domain"
)

func decodeRegister(data []byte) (orch.Command, error) {
	type registerPayload struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	var p registerPayload
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	u, err := domain.ParseUserID(p.UserID)
	if err != nil {
		return nil, err
	}
	return orch.RegisterCmd{User: u}, nil
}

func decodeWhoAmI([]byte) (orch.Command, error) {
	return orch.WhoAmICmd{}, nil
}
