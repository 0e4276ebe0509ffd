package signal

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/domain"
)

var (
	ErrUnknownType        = errors.New("unknown_type")
	ErrBadPayload         = errors.New("bad_payload")
	ErrMissingDestination = errors.New("missing_destination")
)

type decoder func(data []byte) (orch.Command, error)

// decoders maps wire event names, including the legacy client's names,
// onto command decoders.
var decoders = map[string]decoder{
	"register":      decodeRegister,
	"register-user": decodeRegister,
	"join":          decodeJoin,
	"join-room":     decodeJoin,
	"create-room":   decodeCreateRoom,
	"leave":         decodeLeave,
	"leave-room":    decodeLeave,
	"invite":        decodeInvite,
	"call-user":     decodeInvite,
	"respond":       decodeRespond,
	"call-response": decodeRespond,
	"signal":        decodeSignal,
	"hangup":        decodeHangup,
	"whoami":        decodeWhoAmI,
}

// Decode turns one inbound frame of the given type into a command.
func Decode(typ string, data []byte) (orch.Command, error) {
	dec, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return dec(data)
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// errorCode maps a decode error onto the code sent back to the client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownType):
		return ErrUnknownType.Error()
	case errors.Is(err, ErrMissingDestination):
		return ErrMissingDestination.Error()
	case errors.Is(err, domain.ErrUserIDEmpty), errors.Is(err, domain.ErrUserIDTooLong):
		return "invalid_user"
	case errors.Is(err, domain.ErrRoomIDEmpty), errors.Is(err, domain.ErrRoomIDTooLong):
		return "invalid_room"
	default:
		return ErrBadPayload.Error()
	}
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// optionalUser parses raw when present.
func optionalUser(raw string) (domain.UserID, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseUserID(raw)
}
