package callgateway

import "github.com/rs/zerolog/log"

func logError(err error, msg string, sessionIDs ...string) {
	ev := log.Error().Err(err)
	if len(sessionIDs) == 1 {
		ev = ev.Str("session_id", sessionIDs[0])
	} else if len(sessionIDs) > 1 {
		ev = ev.Strs("session_ids", sessionIDs)
	}
	ev.Msg(msg)
}
