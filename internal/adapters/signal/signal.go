package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Options tune the WebSocket transport.
type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:      65536,
		PingPeriod:     54 * time.Second,
		PongWait:       60 * time.Second,
		WriteTimeout:   5 * time.Second,
		SendBuffer:     64,
		RateLimit:      50,
		RateBurst:      100,
		AllowedOrigins: []string{"*"},
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteTimeout:   cfg.WriteTimeout,
		SendBuffer:     cfg.SendBuffer,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator

	opts     Options
	limiter  *EventLimiter
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		opts:    opts,
		limiter: NewEventLimiter(opts.RateLimit, opts.RateBurst),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// WsSignalConn is the outbound side of one WebSocket: a bounded queue drained
// by the write pump. It implements core.SignalConnection.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and serves the connection until it drops.
// A non-empty user is registered right away.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user domain.UserID) {
	cid := core.NewConnID()
	log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	go ctl.serve(ctx, cid, conn, user)
}

func (ctl *SignalWSController) serve(ctx context.Context, cid core.ConnID, conn *WsSignalConn, user domain.UserID) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctl.Orch.Connect(cid, conn, cancel)
	if user != "" {
		ctl.Orch.Dispatch(cid, orch.RegisterCmd{User: user})
	}

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, cid, conn) })
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, cid, conn)
	})
	wg.Wait()

	ctl.limiter.Forget(cid)
	ctl.Orch.Dispatch(cid, orch.DisconnectCmd{})
}
