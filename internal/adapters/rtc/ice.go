// Package rtc builds the WebRTC configuration handed to clients. Media flows
// peer-to-peer; the relay only tells peers which STUN/TURN servers to use.
package rtc

import (
	"errors"
	"fmt"

	"github.com/dkeye/callrelay/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

var ErrTURNCredentials = errors.New("turn server requires username and credential")

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEServers validates configured servers and converts them to pion types.
// An empty list yields the default public STUN server.
func ICEServers(in []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(in) == 0 {
		return DefaultICEServers(), nil
	}
	out := make([]webrtc.ICEServer, 0, len(in))
	for i, s := range in {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d: no urls", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice server %d: %q: %w", i, raw, err)
			}
			turn := u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS
			if turn && (s.Username == "" || s.Credential == "") {
				return nil, fmt.Errorf("ice server %d: %q: %w", i, raw, ErrTURNCredentials)
			}
		}
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out, nil
}
