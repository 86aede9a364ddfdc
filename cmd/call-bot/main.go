package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"time"

	"ventline/internal/config"
	"ventline/internal/logging"
	"ventline/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

type serverMessage struct {
	Type      string `json:"type"`
	CallID    string `json:"callId"`
	PartnerID string `json:"partnerId"`
	Duration  int64  `json:"duration"`
	StartedAt int64  `json:"startedAt"`
	Minutes   int64  `json:"minutes"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg.WithService("call-bot"))
	botCfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	wsURL := flag.String("url", botCfg.WSURL, "websocket endpoint")
	sessionID := flag.String("session", botCfg.SessionID, "session id (random when empty)")
	mood := flag.String("mood", botCfg.Mood, "vent or listen")
	priority := flag.Bool("priority", botCfg.Priority, "spend a priority token when joining")
	talkFor := flag.Duration("talk-for", botCfg.TalkFor, "how long to stay in the call before hanging up")
	extendBy := flag.Int("extend", botCfg.ExtendBy, "minutes to extend once the call starts (0 disables)")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}
	logger := log.With().Str("session_id", *sessionID).Str("mood", *mood).Logger()

	conn, _, err := websocket.DefaultDialer.Dial(*wsURL, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("url", *wsURL).Msg("dial failed")
	}
	defer conn.Close()

	outbound := make(chan protocol.ClientMessage, 8)
	go func() {
		for msg := range outbound {
			payload, _ := json.Marshal(msg)
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Error().Err(err).Msg("write failed")
				return
			}
		}
	}()

	outbound <- protocol.ClientMessage{Type: protocol.TypeRegister, SessionID: *sessionID}
	outbound <- protocol.ClientMessage{Type: protocol.TypeJoinQueue, Mood: *mood, IsPriority: *priority}

	inbound := make(chan serverMessage, 8)
	go func() {
		defer close(inbound)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			inbound <- msg
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	heartbeat := time.NewTicker(5 * time.Second)
	defer heartbeat.Stop()
	var hangUp <-chan time.Time
	var callID string
	var endsAt time.Time

	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				logger.Info().Msg("connection_closed")
				return
			}
			switch msg.Type {
			case protocol.TypeWaiting, protocol.TypeHeartbeatAck:
			case protocol.TypeQueueRejected:
				logger.Warn().Str("reason", msg.Reason).Str("message", msg.Message).Msg("queue_rejected")
				return
			case protocol.TypeMatchFound:
				callID = msg.CallID
				logger.Info().Str("call_id", callID).Str("partner_id", msg.PartnerID).Msg("match_found")
				outbound <- protocol.ClientMessage{Type: protocol.TypeCallReady, CallID: callID}
			case protocol.TypeCallStarted:
				endsAt = time.UnixMilli(msg.StartedAt).Add(time.Duration(msg.Duration) * time.Second)
				logger.Info().Str("call_id", msg.CallID).Time("ends_at", endsAt).Msg("call_started")
				hangUp = time.After(*talkFor)
				if *extendBy > 0 {
					outbound <- protocol.ClientMessage{Type: protocol.TypeExtendCall, CallID: msg.CallID, Minutes: int64(*extendBy)}
				}
			case protocol.TypeCallExtended:
				endsAt = endsAt.Add(time.Duration(msg.Minutes) * time.Minute)
				logger.Info().Int64("minutes", msg.Minutes).Time("ends_at", endsAt).Msg("call_extended")
			case protocol.TypeExtensionRejected:
				logger.Warn().Str("reason", msg.Reason).Msg("extension_rejected")
			case protocol.TypeCallEnded:
				logger.Info().Str("reason", msg.Reason).Msg("call_ended")
				return
			case protocol.TypeConnectionReplaced:
				logger.Warn().Msg("connection_replaced")
				return
			default:
				logger.Debug().Str("type", msg.Type).Msg("unhandled_message")
			}
		case <-heartbeat.C:
			if callID == "" {
				outbound <- protocol.ClientMessage{Type: protocol.TypeHeartbeat}
			}
		case <-hangUp:
			remaining := time.Until(endsAt).Seconds()
			if remaining < 0 {
				remaining = 0
			}
			logger.Info().Float64("remaining_seconds", remaining).Msg("hanging_up")
			outbound <- protocol.ClientMessage{Type: protocol.TypeEndCall, CallID: callID, Reason: "normal", RemainingSeconds: &remaining}
			time.Sleep(500 * time.Millisecond)
			return
		case <-interrupt:
			if callID != "" {
				outbound <- protocol.ClientMessage{Type: protocol.TypeEndCall, CallID: callID, Reason: "normal"}
			} else {
				outbound <- protocol.ClientMessage{Type: protocol.TypeLeaveQueue}
			}
			time.Sleep(200 * time.Millisecond)
			return
		}
	}
}
