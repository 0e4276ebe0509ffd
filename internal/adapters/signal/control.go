package signal

import "github.com/dkeye/callrelay/internal/core"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendJSON(conn, core.Event{Type: core.EventPong})
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, code string) {
	ctl.sendJSON(conn, core.ErrorEvent(code))
}
