package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetSizes(Sizes{Connections: 3, Identities: 2, Rooms: 1, Calls: 1})
	m.Event("invite")
	m.Event("invite")
	m.Notified("incoming-call")
	m.Dropped("offline")
	m.Transition("ringing")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.identities))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("invite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("incoming-call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("offline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("ringing")))

	err := testutil.CollectAndCompare(m.rooms, strings.NewReader(`
# HELP callrelay_rooms Rooms with at least one member.
# TYPE callrelay_rooms gauge
callrelay_rooms 1
`))
	assert.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "callrelay_calls 1")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetSizes(Sizes{Connections: 1})
		m.Event("x")
		m.Notified("x")
		m.Dropped("x")
		m.Transition("x")
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
