package ws

import (
	"context"
	"net/http"
	"time"

	"ventline/internal/callgateway"
	"ventline/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const frameTimeout = 10 * time.Second

// Coordinator is what the socket layer drives.
type Coordinator interface {
	Register(ctx context.Context, sessionID string)
	JoinQueue(ctx context.Context, req callgateway.JoinRequest)
	LeaveQueue(ctx context.Context, sessionID string)
	Heartbeat(ctx context.Context, sessionID string)
	Ready(ctx context.Context, sessionID, callID string)
	PushPending(ctx context.Context, sessionID string)
	EndCall(ctx context.Context, sessionID, reason string, remainingSeconds *float64)
	Extend(ctx context.Context, sessionID string, minutes int64)
	OnDisconnect(ctx context.Context, sessionID string)
}

type Server struct {
	registry     *Registry
	coord        Coordinator
	validator    *protocol.Validator
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func NewServer(reg *Registry, coord Coordinator, pingInterval time.Duration) *Server {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Server{
		registry:     reg,
		coord:        coord,
		validator:    protocol.MustClientValidator(),
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		pingInterval: pingInterval,
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws_upgrade_failed")
		return
	}
	client := newClient(conn)
	go client.writeLoop(s.pingInterval)
	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		c.close()
		sid := c.SessionID()
		if sid == "" {
			return
		}
		if s.registry.Deregister(sid, c) {
			log.Info().Str("session_id", sid).Msg("ws_disconnected")
			ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
			defer cancel()
			s.coord.OnDisconnect(ctx, sid)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := s.validator.DecodeClient(raw)
		if err != nil {
			metricFramesRejected.Add(1)
			log.Warn().Err(err).Str("session_id", c.SessionID()).Msg("ws_frame_rejected")
			continue
		}
		s.dispatch(c, msg)
	}
}

func (s *Server) dispatch(c *Client, msg protocol.ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	if msg.Type == protocol.TypeRegister {
		if cur := c.SessionID(); cur != "" && cur != msg.SessionID {
			log.Warn().Str("session_id", cur).Str("requested", msg.SessionID).Msg("ws_register_rebind_ignored")
			return
		}
		s.registry.Register(msg.SessionID, c)
		log.Info().Str("session_id", msg.SessionID).Msg("ws_registered")
		s.coord.Register(ctx, msg.SessionID)
		return
	}

	sid := c.SessionID()
	if sid == "" {
		log.Warn().Str("type", msg.Type).Msg("ws_frame_before_register")
		return
	}
	switch msg.Type {
	case protocol.TypeJoinQueue:
		s.coord.JoinQueue(ctx, callgateway.JoinRequest{
			SessionID:  sid,
			Mood:       msg.Mood,
			CardID:     msg.CardID,
			IsPriority: msg.IsPriority,
		})
	case protocol.TypeLeaveQueue:
		s.coord.LeaveQueue(ctx, sid)
	case protocol.TypeHeartbeat:
		s.coord.Heartbeat(ctx, sid)
	case protocol.TypeCallReady:
		s.coord.Ready(ctx, sid, msg.CallID)
	case protocol.TypeCheckMatch:
		s.coord.PushPending(ctx, sid)
	case protocol.TypeEndCall:
		s.coord.EndCall(ctx, sid, msg.Reason, msg.RemainingSeconds)
	case protocol.TypeExtendCall:
		s.coord.Extend(ctx, sid, msg.Minutes)
	}
}
