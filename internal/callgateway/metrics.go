package callgateway

import "expvar"

var (
	metricCallsCreatedTotal     = expvar.NewInt("calls_created_total")
	metricCallsStartedTotal     = expvar.NewInt("calls_started_total")
	metricCallsEndedTotal       = expvar.NewInt("calls_ended_total")
	metricReadyTimeoutsTotal    = expvar.NewInt("call_ready_timeouts_total")
	metricExtensionsTotal       = expvar.NewInt("call_extensions_total")
	metricExtensionRejectsTotal = expvar.NewInt("call_extension_rejects_total")
	metricPendingBufferedTotal  = expvar.NewInt("pending_events_buffered_total")
	metricQueueRejectsTotal     = expvar.NewInt("queue_rejects_total")
	metricActiveCalls           = expvar.NewInt("calls_active")
)
