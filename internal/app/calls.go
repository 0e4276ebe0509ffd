package app

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrStaleTransition = errors.New("stale call transition")
	ErrSelfCall        = errors.New("cannot call yourself")
)

// Transition is a status change of a call together with the participant
// who must be told about it.
type Transition struct {
	Call   domain.Call
	Notify domain.UserID
	Reason string
}

type pairKey struct{ a, b domain.UserID }

func keyOf(x, y domain.UserID) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// Calls tracks in-flight call attempts. Terminal calls are pruned at once.
type Calls struct {
	mu     sync.RWMutex
	byID   map[domain.CallID]*domain.Call
	byPair map[pairKey]domain.CallID
	byUser map[domain.UserID]map[domain.CallID]struct{}
	now    func() time.Time
}

func NewCalls() *Calls {
	return &Calls{
		byID:   make(map[domain.CallID]*domain.Call),
		byPair: make(map[pairKey]domain.CallID),
		byUser: make(map[domain.UserID]map[domain.CallID]struct{}),
		now:    time.Now,
	}
}

// Open starts a ringing call from caller to callee. When the pair already has
// a live call it is returned unchanged with created=false.
func (t *Calls) Open(caller, callee domain.UserID) (domain.Call, bool, error) {
	if caller == callee {
		return domain.Call{}, false, ErrSelfCall
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byPair[keyOf(caller, callee)]; ok {
		return *t.byID[id], false, nil
	}
	c := &domain.Call{
		ID:        domain.CallID(uuid.NewString()),
		Caller:    caller,
		Callee:    callee,
		Status:    domain.CallRinging,
		CreatedAt: t.now(),
	}
	t.byID[c.ID] = c
	t.byPair[keyOf(caller, callee)] = c.ID
	t.index(c.Caller, c.ID)
	t.index(c.Callee, c.ID)
	log.Info().Str("module", "app.calls").Str("call", string(c.ID)).
		Str("caller", string(caller)).Str("callee", string(callee)).Msg("ringing")
	return *c, true, nil
}

// Respond resolves a ringing call. Only the caller→callee direction of a
// ringing call matches; anything else is a stale transition.
func (t *Calls) Respond(caller, callee domain.UserID, accepted bool) (domain.Call, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byPair[keyOf(caller, callee)]
	if !ok {
		return domain.Call{}, ErrStaleTransition
	}
	c := t.byID[id]
	if c.Status != domain.CallRinging || c.Caller != caller || c.Callee != callee {
		return domain.Call{}, ErrStaleTransition
	}
	if accepted {
		c.Status = domain.CallAccepted
		log.Info().Str("module", "app.calls").Str("call", string(c.ID)).Msg("accepted")
		return *c, nil
	}
	c.Status = domain.CallRejected
	out := *c
	t.pruneLocked(c)
	log.Info().Str("module", "app.calls").Str("call", string(c.ID)).Msg("rejected")
	return out, nil
}

// Hangup ends every call user takes part in. A ringing call hung up by its
// caller is a cancellation; by its callee a decline.
func (t *Calls) Hangup(user domain.UserID) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	calls := t.ofLocked(user)
	out := make([]Transition, 0, len(calls))
	for _, c := range calls {
		peer, _ := c.Peer(user)
		tr := Transition{Notify: peer}
		switch {
		case c.Status == domain.CallAccepted:
			c.Status = domain.CallEnded
			tr.Reason = core.ReasonHangup
		case c.Caller == user:
			c.Status = domain.CallEnded
			tr.Reason = core.ReasonCancelled
		default:
			c.Status = domain.CallRejected
			tr.Reason = core.ReasonDeclined
		}
		tr.Call = *c
		t.pruneLocked(c)
		out = append(out, tr)
		log.Info().Str("module", "app.calls").Str("call", string(c.ID)).
			Str("user", string(user)).Str("reason", tr.Reason).Msg("hangup")
	}
	return out
}

// EndAll forces every call of user to Ended.
func (t *Calls) EndAll(user domain.UserID, reason string) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	calls := t.ofLocked(user)
	out := make([]Transition, 0, len(calls))
	for _, c := range calls {
		peer, _ := c.Peer(user)
		c.Status = domain.CallEnded
		out = append(out, Transition{Call: *c, Notify: peer, Reason: reason})
		t.pruneLocked(c)
		log.Info().Str("module", "app.calls").Str("call", string(c.ID)).
			Str("user", string(user)).Str("reason", reason).Msg("ended")
	}
	return out
}

func (t *Calls) Get(id domain.CallID) (domain.Call, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byID[id]
	if !ok {
		return domain.Call{}, false
	}
	return *c, true
}

// Between returns the live call of an unordered pair.
func (t *Calls) Between(x, y domain.UserID) (domain.Call, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byPair[keyOf(x, y)]
	if !ok {
		return domain.Call{}, false
	}
	return *t.byID[id], true
}

func (t *Calls) Of(user domain.UserID) []domain.Call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	calls := t.ofLocked(user)
	out := make([]domain.Call, 0, len(calls))
	for _, c := range calls {
		out = append(out, *c)
	}
	return out
}

func (t *Calls) List() []domain.Call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Call, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b domain.Call) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (t *Calls) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

func (t *Calls) index(u domain.UserID, id domain.CallID) {
	set, ok := t.byUser[u]
	if !ok {
		set = make(map[domain.CallID]struct{})
		t.byUser[u] = set
	}
	set[id] = struct{}{}
}

func (t *Calls) unindex(u domain.UserID, id domain.CallID) {
	set := t.byUser[u]
	delete(set, id)
	if len(set) == 0 {
		delete(t.byUser, u)
	}
}

func (t *Calls) pruneLocked(c *domain.Call) {
	delete(t.byID, c.ID)
	delete(t.byPair, keyOf(c.Caller, c.Callee))
	t.unindex(c.Caller, c.ID)
	t.unindex(c.Callee, c.ID)
}

// ofLocked returns the calls of user ordered by creation.
func (t *Calls) ofLocked(user domain.UserID) []*domain.Call {
	set := t.byUser[user]
	out := make([]*domain.Call, 0, len(set))
	for id := range set {
		out = append(out, t.byID[id])
	}
	slices.SortFunc(out, func(a, b *domain.Call) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
