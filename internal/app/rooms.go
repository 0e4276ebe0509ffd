package app

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Rooms maps a room to the set of joined connections.
// A room exists only while it has at least one member.
type Rooms struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[core.ConnID]struct{}
	byConn  map[core.ConnID]map[domain.RoomID]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[domain.RoomID]map[core.ConnID]struct{}),
		byConn:  make(map[core.ConnID]map[domain.RoomID]struct{}),
	}
}

// Join adds conn to room, creating the room if absent. It returns the members
// present besides conn and whether conn was newly added.
func (r *Rooms) Join(room domain.RoomID, conn core.ConnID) ([]core.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[room]
	if !ok {
		set = make(map[core.ConnID]struct{})
		r.members[room] = set
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room created")
	}
	_, already := set[conn]
	set[conn] = struct{}{}

	joined, ok := r.byConn[conn]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		r.byConn[conn] = joined
	}
	joined[room] = struct{}{}

	if !already {
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("conn", string(conn)).Msg("member added")
	}
	return othersLocked(set, conn), !already
}

// Leave removes conn from room and deletes the room once empty.
// It reports false when conn was not a member.
func (r *Rooms) Leave(room domain.RoomID, conn core.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.removeLocked(room, conn) {
		return false
	}
	if joined := r.byConn[conn]; joined != nil {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, conn)
		}
	}
	return true
}

// PurgeConnection removes conn from every room it joined.
func (r *Rooms) PurgeConnection(conn core.ConnID) []core.Departure {
	r.mu.Lock()
	defer r.mu.Unlock()
	joined, ok := r.byConn[conn]
	if !ok {
		return nil
	}
	delete(r.byConn, conn)

	out := make([]core.Departure, 0, len(joined))
	for room := range joined {
		if !r.removeLocked(room, conn) {
			continue
		}
		out = append(out, core.Departure{Room: room, Remaining: othersLocked(r.members[room], conn)})
	}
	slices.SortFunc(out, func(a, b core.Departure) int { return cmp.Compare(a.Room, b.Room) })
	return out
}

// BroadcastTargets lists the members of room other than exclude.
func (r *Rooms) BroadcastTargets(room domain.RoomID, exclude core.ConnID) []core.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return othersLocked(r.members[room], exclude)
}

func (r *Rooms) Members(room domain.RoomID) ([]core.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[room]
	if !ok {
		return nil, false
	}
	return othersLocked(set, ""), true
}

func (r *Rooms) IsMember(room domain.RoomID, conn core.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][conn]
	return ok
}

func (r *Rooms) RoomsOf(conn core.ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Collect(maps.Keys(r.byConn[conn]))
	slices.Sort(out)
	return out
}

func (r *Rooms) Has(room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room]
	return ok
}

func (r *Rooms) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.members))
	for id, set := range r.members {
		out = append(out, core.RoomInfo{ID: id, MemberCount: len(set)})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Rooms) removeLocked(room domain.RoomID, conn core.ConnID) bool {
	set, ok := r.members[room]
	if !ok {
		return false
	}
	if _, ok := set[conn]; !ok {
		return false
	}
	delete(set, conn)
	log.Info().Str("module", "app.rooms").Str("room", string(room)).Str("conn", string(conn)).Msg("member removed")
	if len(set) == 0 {
		delete(r.members, room)
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room deleted")
	}
	return true
}

func othersLocked(set map[core.ConnID]struct{}, exclude core.ConnID) []core.ConnID {
	out := make([]core.ConnID, 0, len(set))
	for c := range set {
		if c != exclude {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}
