package orch

import (
	"github.com/dkeye/callrelay/internal/core"
	"github.com/rs/zerolog/log"
)

// Disconnect reconciles every registry after conn is lost. It runs at most
// once per connection; duplicate loss notifications are no-ops.
//
// Order: identities are unbound, the connection is purged from its rooms
// (remaining members get peer-left), then calls of the unbound identities are
// ended (the surviving participant gets hangup with reason "disconnected").
func (o *Orchestrator) Disconnect(conn core.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	info, ok := o.Conns.Unbind(conn)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Msg("disconnect: already reconciled")
		return
	}

	users := o.Identities.Unbind(conn)

	for _, d := range o.Rooms.PurgeConnection(conn) {
		o.notifyPeerLeft(d.Room, d.Remaining, conn, info.User)
	}

	for _, u := range users {
		o.notifyHangup(u, o.Calls.EndAll(u, core.ReasonDisconnected))
	}

	log.Info().Str("module", "orch").Str("conn", string(conn)).
		Str("user", string(info.User)).Int("identities", len(users)).Msg("disconnected")
	o.observe()
}
