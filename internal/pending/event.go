package pending

import (
	"context"

	"ventline/internal/protocol"
)

// Event is an undelivered match notification for one session. Duration is in
// seconds and StartedAt in epoch milliseconds.
type Event struct {
	CallID    string `json:"callId"`
	PartnerID string `json:"partnerId"`
	Duration  int64  `json:"duration"`
	StartedAt *int64 `json:"startedAt,omitempty"`
}

// MatchFound renders the event for the push path.
func (e Event) MatchFound() protocol.MatchFound {
	return protocol.MatchFound{
		Type:      protocol.TypeMatchFound,
		CallID:    e.CallID,
		PartnerID: e.PartnerID,
		Duration:  e.Duration,
		StartedAt: e.StartedAt,
	}
}

// PendingMatch renders the event for the poll path. A nil event means no match.
func (e *Event) PendingMatch() protocol.PendingMatch {
	if e == nil {
		return protocol.PendingMatch{HasMatch: false}
	}
	return protocol.PendingMatch{
		HasMatch:  true,
		CallID:    e.CallID,
		PartnerID: e.PartnerID,
		Duration:  e.Duration,
		StartedAt: e.StartedAt,
	}
}

type Cache interface {
	Put(ctx context.Context, sessionID string, ev Event) error
	// Take returns and removes the stored event, or nil when there is none.
	Take(ctx context.Context, sessionID string) (*Event, error)
	Delete(ctx context.Context, sessionIDs ...string) error
}
