package httptransport

import "expvar"

var (
	metricPendingPollTotal  = expvar.NewInt("pending_poll_total")
	metricPendingPollErrors = expvar.NewInt("pending_poll_errors_total")
	metricVoiceTokensTotal  = expvar.NewInt("voice_tokens_total")
)
