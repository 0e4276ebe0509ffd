package app

import (
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Identities maps a durable user identity to its current live connection.
// At most one connection is bound per identity; the latest registration wins.
type Identities struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]core.ConnID
	byConn map[core.ConnID]map[domain.UserID]struct{}
}

func NewIdentities() *Identities {
	return &Identities{
		byUser: make(map[domain.UserID]core.ConnID),
		byConn: make(map[core.ConnID]map[domain.UserID]struct{}),
	}
}

// Register binds user to conn and returns the connection it superseded, if any.
// The superseded connection is left open.
func (r *Identities) Register(user domain.UserID, conn core.ConnID) (core.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.byUser[user]
	if had && prev != conn {
		r.dropLocked(prev, user)
	}
	r.byUser[user] = conn
	set, ok := r.byConn[conn]
	if !ok {
		set = make(map[domain.UserID]struct{}, 1)
		r.byConn[conn] = set
	}
	set[user] = struct{}{}

	superseded := had && prev != conn
	if superseded {
		log.Info().Str("module", "app.identities").Str("user", string(user)).
			Str("conn", string(conn)).Str("prev_conn", string(prev)).Msg("registration superseded")
	} else {
		log.Info().Str("module", "app.identities").Str("user", string(user)).Str("conn", string(conn)).Msg("registered")
	}
	if !superseded {
		return "", false
	}
	return prev, true
}

func (r *Identities) Resolve(user domain.UserID) (core.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[user]
	return conn, ok
}

// Unbind removes every identity currently mapped to conn. Idempotent.
func (r *Identities) Unbind(conn core.ConnID) []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byConn[conn]
	if !ok {
		return nil
	}
	out := make([]domain.UserID, 0, len(set))
	for u := range set {
		if r.byUser[u] == conn {
			delete(r.byUser, u)
			out = append(out, u)
		}
	}
	delete(r.byConn, conn)
	slices.Sort(out)
	if len(out) > 0 {
		log.Info().Str("module", "app.identities").Str("conn", string(conn)).Int("identities", len(out)).Msg("unbound")
	}
	return out
}

func (r *Identities) IdentitiesOf(conn core.ConnID) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Collect(maps.Keys(r.byConn[conn]))
	slices.Sort(out)
	return out
}

func (r *Identities) Snapshot() map[domain.UserID]core.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.byUser)
}

func (r *Identities) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *Identities) dropLocked(conn core.ConnID, user domain.UserID) {
	set := r.byConn[conn]
	delete(set, user)
	if len(set) == 0 {
		delete(r.byConn, conn)
	}
}
