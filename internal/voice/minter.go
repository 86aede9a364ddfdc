package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const RolePublisher = "publisher"

var (
	ErrNotConfigured = errors.New("voice_not_configured")
	ErrMintFailed    = errors.New("voice_mint_failed")
)

// Credential is a time-limited media token for one channel member.
type Credential struct {
	Token     string    `json:"token"`
	Channel   string    `json:"channel"`
	UID       string    `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Minter interface {
	Mint(ctx context.Context, channel, uid, role string) (Credential, error)
}

func ChannelForCall(callID string) string {
	return "call_" + callID
}

// HTTPMinter asks an external token service for credentials.
type HTTPMinter struct {
	endpoint string
	apiKey   string
	ttl      time.Duration
	inner    *http.Client
}

func NewHTTPMinter(endpoint, apiKey string, ttl, timeout time.Duration) *HTTPMinter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &HTTPMinter{endpoint: endpoint, apiKey: apiKey, ttl: ttl, inner: &http.Client{Timeout: timeout}}
}

type mintRequest struct {
	Channel    string `json:"channel"`
	UID        string `json:"uid"`
	Role       string `json:"role"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type mintResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (m *HTTPMinter) Mint(ctx context.Context, channel, uid, role string) (Credential, error) {
	raw, err := json.Marshal(mintRequest{Channel: channel, UID: uid, Role: role, TTLSeconds: int64(m.ttl / time.Second)})
	if err != nil {
		return Credential{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(raw))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.inner.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, fmt.Errorf("%w: status %d", ErrMintFailed, resp.StatusCode)
	}
	var out mintResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	if out.Token == "" {
		return Credential{}, fmt.Errorf("%w: empty token", ErrMintFailed)
	}
	exp := time.Unix(out.ExpiresAt, 0).UTC()
	if out.ExpiresAt == 0 {
		exp = time.Now().Add(m.ttl).UTC()
	}
	return Credential{Token: out.Token, Channel: channel, UID: uid, ExpiresAt: exp}, nil
}
