package matchmaking

import "expvar"

var (
	metricQueueJoinTotal        = expvar.NewInt("queue_join_total")
	metricQueuePurgedTotal      = expvar.NewInt("queue_purged_total")
	metricClaimRacesLostTotal   = expvar.NewInt("claim_races_lost_total")
	metricMatchesTotal          = expvar.NewInt("matches_total")
	metricMatchesAbandonedTotal = expvar.NewInt("matches_abandoned_total")
)
