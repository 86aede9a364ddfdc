package ws

import "expvar"

var (
	metricConnectionsLive     = expvar.NewInt("ws_connections_live")
	metricConnectionsReplaced = expvar.NewInt("ws_connections_replaced_total")
	metricFramesRejected      = expvar.NewInt("ws_frames_rejected_total")
)
