// Package orch coordinates the registries: it turns inbound commands into
// registry mutations and outbound notifications.
//
// Lock order: every operation takes Orchestrator.mu first. The registries
// (Connections, Identities, Rooms, Calls) guard their own maps and never call
// one another, so at most one registry lock is held beneath Orchestrator.mu.
// Notification delivery is a non-blocking enqueue and happens under the lock,
// which keeps fan-out ordered with respect to the mutation that caused it.
package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/metrics"
	"github.com/rs/zerolog/log"
)

var (
	ErrUserOffline    = errors.New("user offline")
	ErrNotRegistered  = errors.New("caller not registered")
	ErrCallInProgress = errors.New("call already in progress")
)

type Orchestrator struct {
	Conns      *app.Connections
	Identities *app.Identities
	Rooms      *app.Rooms
	Calls      *app.Calls
	Policy     app.Policy
	Metrics    *metrics.Metrics

	mu sync.Mutex
}

func New(policy app.Policy, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		Conns:      app.NewConnections(),
		Identities: app.NewIdentities(),
		Rooms:      app.NewRooms(),
		Calls:      app.NewCalls(),
		Policy:     policy,
		Metrics:    m,
	}
}

// Connect records a freshly established connection. Events from a connection
// that was never connected, or already disconnected, are ignored.
func (o *Orchestrator) Connect(conn core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Conns.Bind(conn, sig, cancel)
	o.observe()
}

// Dispatch is the single entry point for decoded inbound events.
func (o *Orchestrator) Dispatch(conn core.ConnID, cmd Command) {
	o.Metrics.Event(cmd.name())
	switch c := cmd.(type) {
	case RegisterCmd:
		o.Register(conn, c.User)
	case JoinCmd:
		if c.Create {
			o.CreateRoom(conn, c.Room, c.User)
		} else {
			o.Join(conn, c.Room, c.User)
		}
	case LeaveCmd:
		o.Leave(conn, c.Room)
	case InviteCmd:
		o.Invite(conn, c.From, c.To)
	case RespondCmd:
		o.Respond(conn, c.From, c.To, c.Accepted)
	case SignalCmd:
		o.Relay(conn, c.Dest, c.Data)
	case HangupCmd:
		o.Hangup(conn, c.User)
	case WhoAmICmd:
		o.WhoAmI(conn)
	case DisconnectCmd:
		o.Disconnect(conn)
	}
}

// send delivers ev to conn. Delivery is best-effort: a missing connection or a
// full buffer drops the notification.
func (o *Orchestrator) send(conn core.ConnID, ev core.Event) bool {
	sig, ok := o.Conns.Signal(conn)
	if !ok {
		o.Metrics.Dropped("no_connection")
		return false
	}
	f, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", string(ev.Type)).Msg("encode event")
		o.Metrics.Dropped("encode")
		return false
	}
	if err := sig.TrySend(f); err != nil {
		if errors.Is(err, core.ErrBackpressure) {
			o.Metrics.Dropped("backpressure")
			o.onBackpressure(conn)
		} else {
			o.Metrics.Dropped("closed")
		}
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(conn)).Str("type", string(ev.Type)).Msg("notification dropped")
		return false
	}
	o.Metrics.Notified(string(ev.Type))
	return true
}

// sendUser resolves user at the moment of delivery.
func (o *Orchestrator) sendUser(user domain.UserID, ev core.Event) bool {
	conn, ok := o.Identities.Resolve(user)
	if !ok {
		o.Metrics.Dropped("offline")
		log.Debug().Str("module", "orch").Str("user", string(user)).Str("type", string(ev.Type)).Msg("recipient offline")
		return false
	}
	return o.send(conn, ev)
}

func (o *Orchestrator) onBackpressure(conn core.ConnID) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(conn) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("conn", string(conn)).Msg("kicking slow connection")
		o.Conns.Cancel(conn)
	case app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) participants(conns []core.ConnID) []core.Participant {
	out := make([]core.Participant, 0, len(conns))
	for _, c := range conns {
		u, _ := o.Conns.UserOf(c)
		out = append(out, core.Participant{Conn: c, User: u})
	}
	return out
}

func (o *Orchestrator) observe() {
	o.Metrics.SetSizes(metrics.Sizes{
		Connections: o.Conns.Len(),
		Identities:  o.Identities.Len(),
		Rooms:       o.Rooms.Len(),
		Calls:       o.Calls.Len(),
	})
}
