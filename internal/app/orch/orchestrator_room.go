package orch

import (
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join adds conn to room. The joiner is told who is already present and,
// on first join, the others receive peer-joined. A non-empty user is recorded
// as connection metadata only; it does not bind the identity.
func (o *Orchestrator) Join(conn core.ConnID, room domain.RoomID, user domain.UserID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.joinLocked(conn, room, user, core.EventJoined)
}

// CreateRoom is Join for clients that open a room: the joiner gets
// room-created, peers already present still get peer-joined.
func (o *Orchestrator) CreateRoom(conn core.ConnID, room domain.RoomID, user domain.UserID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.joinLocked(conn, room, user, core.EventRoomCreated)
}

func (o *Orchestrator) joinLocked(conn core.ConnID, room domain.RoomID, user domain.UserID, reply core.EventType) bool {
	if !o.Conns.Has(conn) {
		return false
	}
	if user != "" {
		o.Conns.SetUser(conn, user)
	}
	others, added := o.Rooms.Join(room, conn)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(room)).Bool("added", added).Msg("join")

	o.send(conn, core.Event{
		Type:         reply,
		Room:         room,
		Conn:         conn,
		Participants: o.participants(others),
	})
	if added {
		from, _ := o.Conns.UserOf(conn)
		for _, peer := range others {
			o.send(peer, core.Event{
				Type:     core.EventPeerJoined,
				Room:     room,
				From:     from,
				FromConn: conn,
			})
		}
	}
	o.observe()
	return true
}

// Leave removes conn from room, or from every room when room is empty.
// It returns the number of rooms left; leaving a room one is not in is a no-op.
func (o *Orchestrator) Leave(conn core.ConnID, room domain.RoomID) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Conns.Has(conn) {
		return 0
	}
	rooms := []domain.RoomID{room}
	if room == "" {
		rooms = o.Rooms.RoomsOf(conn)
	}
	from, _ := o.Conns.UserOf(conn)

	left := 0
	for _, r := range rooms {
		if !o.Rooms.Leave(r, conn) {
			log.Debug().Str("module", "orch").Str("conn", string(conn)).Str("room", string(r)).Msg("leave: not a member")
			continue
		}
		left++
		log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(r)).Msg("leave")
		o.send(conn, core.Event{Type: core.EventLeft, Room: r})
		o.notifyPeerLeft(r, o.Rooms.BroadcastTargets(r, conn), conn, from)
	}
	o.observe()
	return left
}

func (o *Orchestrator) notifyPeerLeft(room domain.RoomID, remaining []core.ConnID, conn core.ConnID, user domain.UserID) {
	for _, peer := range remaining {
		o.send(peer, core.Event{
			Type:     core.EventPeerLeft,
			Room:     room,
			From:     user,
			FromConn: conn,
		})
	}
}

// RoomMembers returns a consistent snapshot of a room's members.
func (o *Orchestrator) RoomMembers(room domain.RoomID) ([]core.Participant, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	conns, ok := o.Rooms.Members(room)
	if !ok {
		return nil, false
	}
	return o.participants(conns), true
}
