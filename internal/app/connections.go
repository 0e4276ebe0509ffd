package app

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Signal      core.SignalConnection
	User        domain.UserID
	Cancel      context.CancelFunc
	ConnectedAt time.Time
}

// ConnInfo is a snapshot of a connection's metadata.
type ConnInfo struct {
	ID          core.ConnID   `json:"id"`
	User        domain.UserID `json:"userId,omitempty"`
	ConnectedAt time.Time     `json:"connectedAt"`
}

// Connections maps a live connection to its transport sink and metadata.
type Connections struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
}

func NewConnections() *Connections {
	return &Connections{
		conns: make(map[core.ConnID]*connEntry),
	}
}

func (r *Connections) Bind(id core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Signal: sig, Cancel: cancel, ConnectedAt: time.Now()}
	log.Info().Str("module", "app.connections").Str("conn", string(id)).Msg("bound connection")
}

func (r *Connections) Has(id core.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Connections) Signal(id core.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Signal, true
	}
	return nil, false
}

// SetUser records the identity the connection last registered as.
// It may go stale when another connection supersedes the identity.
func (r *Connections) SetUser(id core.ConnID, user domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.User = user
	return true
}

func (r *Connections) UserOf(id core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.User == "" {
		return "", false
	}
	return e.User, true
}

func (r *Connections) Info(id core.ConnID) (ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnInfo{}, false
	}
	return ConnInfo{ID: id, User: e.User, ConnectedAt: e.ConnectedAt}, true
}

// Unbind removes the connection. The second call for the same id reports false.
func (r *Connections) Unbind(id core.ConnID) (ConnInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnInfo{}, false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.connections").Str("conn", string(id)).Msg("unbind connection")
	return ConnInfo{ID: id, User: e.User, ConnectedAt: e.ConnectedAt}, true
}

// Cancel cancels the connection context, which tears the transport down.
func (r *Connections) Cancel(id core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.connections").Str("conn", string(id)).Msg("canceled connection")
	return true
}

func (r *Connections) List() []ConnInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnInfo, 0, len(r.conns))
	for id, e := range r.conns {
		out = append(out, ConnInfo{ID: id, User: e.User, ConnectedAt: e.ConnectedAt})
	}
	slices.SortFunc(out, func(a, b ConnInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *Connections) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
