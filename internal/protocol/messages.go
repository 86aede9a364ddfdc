package protocol

const (
	TypeRegister   = "register"
	TypeJoinQueue  = "join_queue"
	TypeLeaveQueue = "leave_queue"
	TypeHeartbeat  = "heartbeat"
	TypeCallReady  = "call_ready"
	TypeCheckMatch = "check_match"
	TypeEndCall    = "end_call"
	TypeExtendCall = "extend_call"

	TypeHeartbeatAck       = "heartbeat_ack"
	TypeWaiting            = "waiting"
	TypeQueueRejected      = "queue_rejected"
	TypeMatchFound         = "match_found"
	TypeWaitingForPartner  = "waiting_for_partner"
	TypeCallStarted        = "call_started"
	TypeCallEnded          = "call_ended"
	TypeCallExtended       = "call_extended"
	TypeExtensionRejected  = "extension_rejected"
	TypeConnectionReplaced = "connection_replaced"
)

// ClientMessage is the union of every client frame. Only the fields of the
// frame's type are meaningful.
type ClientMessage struct {
	Type             string   `json:"type"`
	SessionID        string   `json:"sessionId,omitempty"`
	Mood             string   `json:"mood,omitempty"`
	CardID           string   `json:"cardId,omitempty"`
	IsPriority       bool     `json:"isPriority,omitempty"`
	CallID           string   `json:"callId,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	RemainingSeconds *float64 `json:"remainingSeconds,omitempty"`
	Minutes          int64    `json:"minutes,omitempty"`
}

type HeartbeatAck struct {
	Type string `json:"type"`
}

type Waiting struct {
	Type string `json:"type"`
	Mood string `json:"mood"`
}

type QueueRejected struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// MatchFound carries Duration in seconds. StartedAt (epoch ms) is only set
// once the call timer is running.
type MatchFound struct {
	Type      string `json:"type"`
	CallID    string `json:"callId"`
	PartnerID string `json:"partnerId"`
	Duration  int64  `json:"duration"`
	StartedAt *int64 `json:"startedAt,omitempty"`
}

type WaitingForPartner struct {
	Type   string `json:"type"`
	CallID string `json:"callId"`
}

type CallStarted struct {
	Type      string `json:"type"`
	CallID    string `json:"callId"`
	StartedAt int64  `json:"startedAt"`
	Duration  int64  `json:"duration"`
}

type CallEnded struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type CallExtended struct {
	Type    string `json:"type"`
	Minutes int64  `json:"minutes"`
}

type ExtensionRejected struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type ConnectionReplaced struct {
	Type string `json:"type"`
}

// PendingMatch is the request/response shape of a buffered match.
type PendingMatch struct {
	HasMatch  bool   `json:"hasMatch"`
	CallID    string `json:"callId,omitempty"`
	PartnerID string `json:"partnerId,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
	StartedAt *int64 `json:"startedAt,omitempty"`
}

func NewHeartbeatAck() HeartbeatAck { return HeartbeatAck{Type: TypeHeartbeatAck} }

func NewWaiting(mood string) Waiting { return Waiting{Type: TypeWaiting, Mood: mood} }

func NewQueueRejected(reason, message string) QueueRejected {
	return QueueRejected{Type: TypeQueueRejected, Reason: reason, Message: message}
}

func NewWaitingForPartner(callID string) WaitingForPartner {
	return WaitingForPartner{Type: TypeWaitingForPartner, CallID: callID}
}

func NewCallStarted(callID string, startedAtMS, durationSec int64) CallStarted {
	return CallStarted{Type: TypeCallStarted, CallID: callID, StartedAt: startedAtMS, Duration: durationSec}
}

func NewCallEnded(reason string) CallEnded { return CallEnded{Type: TypeCallEnded, Reason: reason} }

func NewCallExtended(minutes int64) CallExtended {
	return CallExtended{Type: TypeCallExtended, Minutes: minutes}
}

func NewExtensionRejected(reason, message string) ExtensionRejected {
	return ExtensionRejected{Type: TypeExtensionRejected, Reason: reason, Message: message}
}

func NewConnectionReplaced() ConnectionReplaced {
	return ConnectionReplaced{Type: TypeConnectionReplaced}
}
