package orch

import (
	"errors"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Register binds user to conn. A connection already bound to user elsewhere
// is left open and keeps its stale metadata until it disconnects.
func (o *Orchestrator) Register(conn core.ConnID, user domain.UserID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(conn) {
		return false
	}
	o.Identities.Register(user, conn)
	o.Conns.SetUser(conn, user)
	o.send(conn, core.Event{Type: core.EventRegistered, User: user, Conn: conn})
	o.observe()
	return true
}

// Invite rings callee on behalf of caller, which must be bound to conn. An
// empty caller defaults to the connection's registered identity. An offline
// callee yields user-offline.
func (o *Orchestrator) Invite(conn core.ConnID, caller, callee domain.UserID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(conn) {
		return
	}
	if caller == "" {
		caller, _ = o.boundUser(conn)
	}
	if caller == "" || !o.owns(conn, caller) {
		log.Warn().Str("module", "orch").Str("conn", string(conn)).Str("caller", string(caller)).Msg("invite: caller not registered")
		o.send(conn, core.ErrorEvent("not_registered"))
		return
	}
	_, err := o.ringLocked(caller, callee)
	switch {
	case errors.Is(err, ErrUserOffline):
		o.send(conn, core.Event{Type: core.EventUserOffline, To: callee})
	case errors.Is(err, app.ErrSelfCall):
		o.send(conn, core.ErrorEvent("self_call"))
	case errors.Is(err, ErrCallInProgress):
		o.send(conn, core.Event{Type: core.EventError, Error: "call_in_progress", To: callee})
	}
	o.observe()
}

// Ring is Invite without a calling connection, used by the HTTP API. The
// caller must still be online so its loss ends the call.
func (o *Orchestrator) Ring(caller, callee domain.UserID) (domain.Call, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.Identities.Resolve(caller); !ok {
		return domain.Call{}, ErrNotRegistered
	}
	c, err := o.ringLocked(caller, callee)
	o.observe()
	return c, err
}

// boundUser returns an identity bound to conn, preferring the one it last
// registered as.
func (o *Orchestrator) boundUser(conn core.ConnID) (domain.UserID, bool) {
	if u, ok := o.Conns.UserOf(conn); ok && o.owns(conn, u) {
		return u, true
	}
	ids := o.Identities.IdentitiesOf(conn)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

func (o *Orchestrator) owns(conn core.ConnID, user domain.UserID) bool {
	c, ok := o.Identities.Resolve(user)
	return ok && c == conn
}

func (o *Orchestrator) ringLocked(caller, callee domain.UserID) (domain.Call, error) {
	calleeConn, ok := o.Identities.Resolve(callee)
	if !ok {
		log.Info().Str("module", "orch").Str("caller", string(caller)).Str("callee", string(callee)).Msg("invite: callee offline")
		return domain.Call{}, ErrUserOffline
	}
	c, created, err := o.Calls.Open(caller, callee)
	if err != nil {
		return domain.Call{}, err
	}
	if created {
		o.Metrics.Transition(domain.CallRinging.String())
	} else if c.Caller != caller || c.Status != domain.CallRinging {
		log.Warn().Str("module", "orch").Str("call", string(c.ID)).
			Str("caller", string(caller)).Str("callee", string(callee)).
			Str("status", c.Status.String()).Msg("invite: call already in progress")
		return c, ErrCallInProgress
	}
	o.send(calleeConn, core.Event{
		Type: core.EventIncomingCall,
		From: caller,
		To:   callee,
		Call: c.ID,
	})
	return c, nil
}

// Respond resolves the ringing call caller placed to callee. Stale responses
// are logged and otherwise ignored.
func (o *Orchestrator) Respond(conn core.ConnID, caller, callee domain.UserID, accepted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(conn) {
		return
	}
	if callee == "" {
		callee, _ = o.boundUser(conn)
	}
	c, err := o.Calls.Respond(caller, callee, accepted)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn)).
			Str("caller", string(caller)).Str("callee", string(callee)).Msg("respond ignored")
		return
	}
	o.Metrics.Transition(c.Status.String())
	o.sendUser(caller, core.Event{
		Type:     core.EventCallResponse,
		From:     callee,
		To:       caller,
		Call:     c.ID,
		Accepted: &accepted,
	})
	o.observe()
}

// Hangup ends every call user takes part in and tells each counterparty.
func (o *Orchestrator) Hangup(conn core.ConnID, user domain.UserID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(conn) {
		return
	}
	if user == "" {
		u, ok := o.boundUser(conn)
		if !ok {
			log.Warn().Str("module", "orch").Str("conn", string(conn)).Msg("hangup: not registered")
			return
		}
		user = u
	}
	trs := o.Calls.Hangup(user)
	if len(trs) == 0 {
		log.Warn().Str("module", "orch").Str("user", string(user)).Msg("hangup: no live call")
		return
	}
	o.notifyHangup(user, trs)
	o.observe()
}

func (o *Orchestrator) notifyHangup(user domain.UserID, trs []app.Transition) {
	for _, tr := range trs {
		o.Metrics.Transition(tr.Call.Status.String())
		o.sendUser(tr.Notify, core.Event{
			Type:   core.EventHangup,
			From:   user,
			Call:   tr.Call.ID,
			Reason: tr.Reason,
		})
	}
}

// WhoAmI reports the connection's handle, identity and rooms back to it.
func (o *Orchestrator) WhoAmI(conn core.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(conn) {
		return
	}
	u, _ := o.Conns.UserOf(conn)
	o.send(conn, core.Event{
		Type:  core.EventWhoAmI,
		Conn:  conn,
		User:  u,
		Rooms: o.Rooms.RoomsOf(conn),
	})
}

// Online reports whether user is bound to a live connection.
func (o *Orchestrator) Online(user domain.UserID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.Identities.Resolve(user)
	return ok
}
