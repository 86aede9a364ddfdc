package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPMinterSendsChannelAndRole(t *testing.T) {
	var got mintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok_1", "expires_at": 1700003600})
	}))
	defer srv.Close()

	m := NewHTTPMinter(srv.URL, "secret", time.Hour, time.Second)
	cred, err := m.Mint(context.Background(), ChannelForCall("01abc"), "s1", RolePublisher)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got.Channel != "call_01abc" || got.UID != "s1" || got.Role != RolePublisher || got.TTLSeconds != 3600 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if cred.Token != "tok_1" || cred.ExpiresAt.Unix() != 1700003600 {
		t.Fatalf("unexpected credential: %+v", cred)
	}
}

func TestHTTPMinterProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewHTTPMinter(srv.URL, "", time.Hour, time.Second)
	if _, err := m.Mint(context.Background(), "call_x", "s1", RolePublisher); !errors.Is(err, ErrMintFailed) {
		t.Fatalf("expected ErrMintFailed, got %v", err)
	}
}

func TestHTTPMinterRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	}))
	defer srv.Close()

	m := NewHTTPMinter(srv.URL, "", time.Hour, time.Second)
	if _, err := m.Mint(context.Background(), "call_x", "s1", RolePublisher); !errors.Is(err, ErrMintFailed) {
		t.Fatalf("expected ErrMintFailed, got %v", err)
	}
}
