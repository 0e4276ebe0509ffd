package orch

import (
	json "github.com/goccy/go-json"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/rs/zerolog/log"
)

// Relay forwards data unchanged to every live connection dest resolves to,
// except the sender. Unresolvable destinations are dropped silently.
// It returns the number of connections the payload was handed to.
func (o *Orchestrator) Relay(from core.ConnID, dest Destination, data json.RawMessage) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(from) {
		return 0
	}

	ev := core.Event{Type: core.EventSignal, FromConn: from, Data: data}
	ev.From, _ = o.Conns.UserOf(from)

	var targets []core.ConnID
	switch dest.Kind {
	case DestUser:
		if c, ok := o.Identities.Resolve(dest.User); ok {
			targets = append(targets, c)
		}
	case DestConn:
		if o.Conns.Has(dest.Conn) {
			targets = append(targets, dest.Conn)
		}
	case DestRoom:
		ev.Room = dest.Room
		targets = o.Rooms.BroadcastTargets(dest.Room, from)
	}

	sent := 0
	for _, t := range targets {
		if t == from {
			continue
		}
		if o.send(t, ev) {
			sent++
		}
	}
	if len(targets) == 0 {
		log.Debug().Str("module", "orch").Str("conn", string(from)).Int("kind", int(dest.Kind)).Msg("signal: no destination")
	}
	return sent
}
