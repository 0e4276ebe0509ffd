package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callrelay/internal/adapters/rtc"
	"github.com/dkeye/callrelay/internal/adapters/signal"
	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/metrics"
)

type testServer struct {
	srv  *httptest.Server
	orch *orch.Orchestrator
	ws   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{Mode: "release", Secret: "test-secret"}
	o := orch.New(app.SimplePolicy{Action: app.KickMember}, metrics.New(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	r := SetupRouter(ctx, cfg, Deps{
		Orch:       o,
		ICEServers: rtc.DefaultICEServers(),
		Signal:     signal.DefaultOptions(),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{
		srv:  srv,
		orch: o,
		ws:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal",
	}
}

func (s *testServer) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.ws, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func expect(t *testing.T, ws *websocket.Conn, typ core.EventType) core.Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev core.Event
		require.NoError(t, ws.ReadJSON(&ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func getJSON(t *testing.T, client *http.Client, url string, out any) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, client *http.Client, url string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCallFlowOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, nil)
	bob := s.dial(t, nil)

	send(t, alice, map[string]any{"type": "register", "userId": "alice"})
	expect(t, alice, core.EventRegistered)
	send(t, bob, map[string]any{"type": "register-user", "userId": "bob"})
	expect(t, bob, core.EventRegistered)

	send(t, alice, map[string]any{"type": "call-user", "to": "bob"})
	inc := expect(t, bob, core.EventIncomingCall)
	assert.Equal(t, "alice", string(inc.From))

	send(t, bob, map[string]any{"type": "call-response", "from": "alice", "accepted": true})
	resp := expect(t, alice, core.EventCallResponse)
	require.NotNil(t, resp.Accepted)
	assert.True(t, *resp.Accepted)
	assert.Equal(t, "bob", string(resp.From))

	send(t, alice, map[string]any{"type": "signal", "to": "bob", "data": map[string]any{"sdp": "offer"}})
	sig := expect(t, bob, core.EventSignal)
	assert.JSONEq(t, `{"sdp":"offer"}`, string(sig.Data))
	assert.Equal(t, "alice", string(sig.From))

	require.NoError(t, bob.Close())
	hang := expect(t, alice, core.EventHangup)
	assert.Equal(t, core.ReasonDisconnected, hang.Reason)
	assert.Eventually(t, func() bool { return s.orch.Calls.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoomsEndpoints(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, nil)
	b := s.dial(t, nil)

	send(t, a, map[string]any{"type": "join-room", "roomId": "lobby", "userId": "alice"})
	expect(t, a, core.EventJoined)
	send(t, b, map[string]any{"type": "join", "roomId": "lobby"})
	joined := expect(t, b, core.EventJoined)
	require.Len(t, joined.Participants, 1)
	assert.Equal(t, "alice", string(joined.Participants[0].User))
	expect(t, a, core.EventPeerJoined)

	var rooms struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, s.srv.Client(), s.srv.URL+"/api/rooms", &rooms))
	assert.Equal(t, []core.RoomInfo{{ID: "lobby", MemberCount: 2}}, rooms.Rooms)

	var members struct {
		Members []core.Participant `json:"members"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, s.srv.Client(), s.srv.URL+"/api/rooms/lobby/members", &members))
	assert.Len(t, members.Members, 2)

	assert.Equal(t, http.StatusNotFound, getJSON(t, s.srv.Client(), s.srv.URL+"/api/rooms/nowhere/members", nil))

	send(t, a, map[string]any{"type": "leave-room", "roomId": "lobby"})
	expect(t, a, core.EventLeft)
	expect(t, b, core.EventPeerLeft)
}

func TestConnectEndpoint(t *testing.T) {
	s := newTestServer(t)
	bob := s.dial(t, nil)
	send(t, bob, map[string]any{"type": "register", "userId": "bob"})
	expect(t, bob, core.EventRegistered)

	code, _ := postJSON(t, s.srv.Client(), s.srv.URL+"/api/connect", map[string]string{"fromUserId": "alice", "toUserId": "bob"})
	assert.Equal(t, http.StatusConflict, code, "caller not connected")

	alice := s.dial(t, nil)
	send(t, alice, map[string]any{"type": "register", "userId": "alice"})
	expect(t, alice, core.EventRegistered)

	code, body := postJSON(t, s.srv.Client(), s.srv.URL+"/api/connect", map[string]string{"fromUserId": "alice", "toUserId": "bob"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	inc := expect(t, bob, core.EventIncomingCall)
	assert.Equal(t, body["callId"], string(inc.Call))

	code, _ = postJSON(t, s.srv.Client(), s.srv.URL+"/api/connect", map[string]string{"fromUserId": "bob", "toUserId": "alice"})
	assert.Equal(t, http.StatusConflict, code, "reverse direction while ringing")

	code, _ = postJSON(t, s.srv.Client(), s.srv.URL+"/api/connect", map[string]string{"fromUserId": "alice", "toUserId": "carol"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = postJSON(t, s.srv.Client(), s.srv.URL+"/api/connect", map[string]string{"fromUserId": "alice"})
	assert.Equal(t, http.StatusBadRequest, code)

	var presence struct {
		Online bool `json:"online"`
	}
	getJSON(t, s.srv.Client(), s.srv.URL+"/api/users/bob/presence", &presence)
	assert.True(t, presence.Online)
	getJSON(t, s.srv.Client(), s.srv.URL+"/api/users/carol/presence", &presence)
	assert.False(t, presence.Online)
}

func TestSessionPresetsIdentity(t *testing.T) {
	s := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	code, _ := postJSON(t, client, s.srv.URL+"/api/session", map[string]string{"userId": "dana"})
	require.Equal(t, http.StatusOK, code)

	u, err := url.Parse(s.srv.URL)
	require.NoError(t, err)
	header := http.Header{}
	for _, c := range jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	ws := s.dial(t, header)
	reg := expect(t, ws, core.EventRegistered)
	assert.Equal(t, "dana", string(reg.User))
	assert.True(t, s.orch.Online("dana"))
}

func TestHealthICEAndMetrics(t *testing.T) {
	s := newTestServer(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, s.srv.Client(), s.srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	var ice struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, s.srv.Client(), s.srv.URL+"/api/ice", &ice))
	require.Len(t, ice.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, ice.ICEServers[0].URLs)

	ws := s.dial(t, nil)
	send(t, ws, map[string]any{"type": "whoami"})
	expect(t, ws, core.EventWhoAmI)

	resp, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "callrelay_connections 1")
	assert.Contains(t, string(body), `callrelay_events_total{type="whoami"} 1`)
}
