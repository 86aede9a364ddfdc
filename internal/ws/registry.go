package ws

import (
	"encoding/json"
	"sync"
	"time"

	"ventline/internal/protocol"

	"github.com/rs/zerolog/log"
)

const defaultReplacedCloseDelay = 500 * time.Millisecond

// Registry maps a session to its single live connection.
type Registry struct {
	mu                 sync.RWMutex
	clients            map[string]*Client
	replacedCloseDelay time.Duration
}

func NewRegistry() *Registry {
	return &Registry{clients: map[string]*Client{}, replacedCloseDelay: defaultReplacedCloseDelay}
}

// Register stores c for sessionID. A previous connection is told it was
// replaced and closed a little later, after c is already stored, so its close
// handling cannot evict c.
func (r *Registry) Register(sessionID string, c *Client) {
	c.bind(sessionID)
	r.mu.Lock()
	old := r.clients[sessionID]
	r.clients[sessionID] = c
	n := len(r.clients)
	r.mu.Unlock()
	metricConnectionsLive.Set(int64(n))

	if old == nil || old == c {
		return
	}
	metricConnectionsReplaced.Add(1)
	log.Info().Str("session_id", sessionID).Msg("ws_connection_replaced")
	if raw, err := json.Marshal(protocol.NewConnectionReplaced()); err == nil {
		old.enqueue(raw)
	}
	time.AfterFunc(r.replacedCloseDelay, old.close)
}

func (r *Registry) Lookup(sessionID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clients[sessionID]
	if c == nil || c.closed() {
		return nil
	}
	return c
}

// Deregister removes c only while it is still the stored connection and
// reports whether it did.
func (r *Registry) Deregister(sessionID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[sessionID] != c {
		return false
	}
	delete(r.clients, sessionID)
	metricConnectionsLive.Set(int64(len(r.clients)))
	return true
}

func (r *Registry) IsLive(sessionID string) bool {
	return r.Lookup(sessionID) != nil
}

// Send marshals msg and queues it on the session's live connection.
func (r *Registry) Send(sessionID string, msg any) bool {
	c := r.Lookup(sessionID)
	if c == nil {
		return false
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("ws_marshal_failed")
		return false
	}
	return c.enqueue(raw)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
