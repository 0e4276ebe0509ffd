package orch

import (
	"context"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/metrics"
)

// fakeConn records every frame handed to it. A positive capacity makes it
// report backpressure once that many frames are queued.
type fakeConn struct {
	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	closed   bool
	canceled bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnClosed
	}
	if f.capacity > 0 && len(f.frames) >= f.capacity {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) events(t *testing.T) []core.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Event, 0, len(f.frames))
	for _, fr := range f.frames {
		var ev core.Event
		require.NoError(t, json.Unmarshal(fr, &ev))
		out = append(out, ev)
	}
	return out
}

// ofType returns the events of one type in delivery order.
func (f *fakeConn) ofType(t *testing.T, typ core.EventType) []core.Event {
	t.Helper()
	var out []core.Event
	for _, ev := range f.events(t) {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeConn) wasCanceled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}

type harness struct {
	t     *testing.T
	o     *Orchestrator
	reg   *prometheus.Registry
	conns map[core.ConnID]*fakeConn
}

func newHarness(t *testing.T, policy app.Policy) *harness {
	reg := prometheus.NewRegistry()
	return &harness{
		t:     t,
		o:     New(policy, metrics.New(reg)),
		reg:   reg,
		conns: make(map[core.ConnID]*fakeConn),
	}
}

func (h *harness) connect(id core.ConnID) *fakeConn {
	fc := &fakeConn{}
	h.conns[id] = fc
	_, cancel := context.WithCancel(context.Background())
	h.o.Connect(id, fc, func() {
		fc.mu.Lock()
		fc.canceled = true
		fc.mu.Unlock()
		cancel()
	})
	return fc
}

// assertNoTrace scans every registry for any reference to conn.
func (h *harness) assertNoTrace(conn core.ConnID) {
	t := h.t
	t.Helper()
	o := h.o

	require.False(t, o.Conns.Has(conn), "connection still registered")
	for _, info := range o.Conns.List() {
		require.NotEqual(t, conn, info.ID)
	}
	require.Empty(t, o.Identities.IdentitiesOf(conn))
	for user, c := range o.Identities.Snapshot() {
		require.NotEqual(t, conn, c, "identity %s still bound", user)
	}
	require.Empty(t, o.Rooms.RoomsOf(conn))
	for _, room := range o.Rooms.List() {
		require.Positive(t, room.MemberCount, "empty room %s present", room.ID)
		require.False(t, o.Rooms.IsMember(room.ID, conn), "still member of %s", room.ID)
	}
	bound := o.Identities.Snapshot()
	for _, c := range o.Calls.List() {
		_, callerOnline := bound[c.Caller]
		_, calleeOnline := bound[c.Callee]
		require.True(t, callerOnline && calleeOnline, "call %s references an offline identity", c.ID)
	}
}

// metric reads a gauge or counter from the test registry. label selects the
// series of a vector by its single label value.
func (h *harness) metric(name, label string) float64 {
	h.t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(h.t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && (len(m.GetLabel()) == 0 || m.GetLabel()[0].GetValue() != label) {
				continue
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
