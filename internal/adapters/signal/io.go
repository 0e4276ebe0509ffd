package signal

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, cid core.ConnID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(ctl.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cid core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(cid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(cid core.ConnID, c *WsSignalConn, data []byte) {
	if !ctl.limiter.Allow(cid) {
		log.Warn().Str("module", "signal").Str("conn", string(cid)).Msg("rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, ErrBadPayload.Error())
		return
	}
	if env.Type == "ping" {
		ctl.handlePing(c)
		return
	}

	cmd, err := Decode(env.Type, data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cid)).Str("type", env.Type).Msg("rejected signal")
		ctl.sendError(c, errorCode(err))
		return
	}
	ctl.Orch.Dispatch(cid, cmd)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
