package app

import (
	"testing"
	"time"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalls() *Calls {
	t := NewCalls()
	base := time.Unix(1700000000, 0)
	n := 0
	t.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return t
}

func TestCallsOpen(t *testing.T) {
	calls := newTestCalls()

	c, created, err := calls.Open("alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.CallRinging, c.Status)
	assert.NotEmpty(t, c.ID)

	again, created, err := calls.Open("bob", "alice")
	require.NoError(t, err)
	assert.False(t, created, "one live call per pair")
	assert.Equal(t, c.ID, again.ID)

	_, _, err = calls.Open("alice", "alice")
	assert.ErrorIs(t, err, ErrSelfCall)

	got, ok := calls.Get(c.ID)
	require.True(t, ok)
	assert.Equal(t, c, got)
	assert.Equal(t, 1, calls.Len())
}

func TestCallsRespondAccept(t *testing.T) {
	calls := newTestCalls()
	c, _, _ := calls.Open("alice", "bob")

	got, err := calls.Respond("alice", "bob", true)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, domain.CallAccepted, got.Status)

	_, err = calls.Respond("alice", "bob", true)
	assert.ErrorIs(t, err, ErrStaleTransition, "already accepted")

	live, ok := calls.Between("bob", "alice")
	require.True(t, ok)
	assert.Equal(t, domain.CallAccepted, live.Status)
}

func TestCallsRespondReject(t *testing.T) {
	calls := newTestCalls()
	calls.Open("alice", "bob")

	got, err := calls.Respond("alice", "bob", false)
	require.NoError(t, err)
	assert.Equal(t, domain.CallRejected, got.Status)
	assert.Equal(t, 0, calls.Len(), "terminal calls are pruned")
	assert.Empty(t, calls.Of("alice"))
	assert.Empty(t, calls.Of("bob"))
}

func TestCallsRespondStale(t *testing.T) {
	calls := newTestCalls()

	_, err := calls.Respond("alice", "bob", true)
	assert.ErrorIs(t, err, ErrStaleTransition, "no call")

	calls.Open("alice", "bob")
	_, err = calls.Respond("bob", "alice", true)
	assert.ErrorIs(t, err, ErrStaleTransition, "wrong direction")

	c, ok := calls.Between("alice", "bob")
	require.True(t, ok)
	assert.Equal(t, domain.CallRinging, c.Status)
}

func TestCallsHangup(t *testing.T) {
	calls := newTestCalls()
	calls.Open("alice", "bob")   // alice caller, ringing
	calls.Open("carol", "alice") // alice callee, ringing
	calls.Open("alice", "dave")
	_, err := calls.Respond("alice", "dave", true)
	require.NoError(t, err)

	trs := calls.Hangup("alice")
	require.Len(t, trs, 3)

	assert.Equal(t, domain.UserID("bob"), trs[0].Notify)
	assert.Equal(t, core.ReasonCancelled, trs[0].Reason)
	assert.Equal(t, domain.CallEnded, trs[0].Call.Status)

	assert.Equal(t, domain.UserID("carol"), trs[1].Notify)
	assert.Equal(t, core.ReasonDeclined, trs[1].Reason)
	assert.Equal(t, domain.CallRejected, trs[1].Call.Status)

	assert.Equal(t, domain.UserID("dave"), trs[2].Notify)
	assert.Equal(t, core.ReasonHangup, trs[2].Reason)
	assert.Equal(t, domain.CallEnded, trs[2].Call.Status)

	assert.Equal(t, 0, calls.Len())
	assert.Empty(t, calls.Hangup("alice"))
}

func TestCallsEndAll(t *testing.T) {
	calls := newTestCalls()
	calls.Open("alice", "bob")
	calls.Open("carol", "dave")

	trs := calls.EndAll("bob", core.ReasonDisconnected)
	require.Len(t, trs, 1)
	assert.Equal(t, domain.UserID("alice"), trs[0].Notify)
	assert.Equal(t, core.ReasonDisconnected, trs[0].Reason)
	assert.Equal(t, domain.CallEnded, trs[0].Call.Status)

	list := calls.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.UserID("carol"), list[0].Caller)
}
