package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Verse-Network/mutation_layer/ops"
)

func TestCoSignerDispatch(t *testing.T) {
	appSecret := []byte("app-secret")

	var received signRequest
	var assertion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sign-requests" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		assertion = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode dispatch body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sessions := NewSessionRegistry(time.Minute)
	p := NewCoSignerProvider(CoSignerConfig{
		BaseURL:     srv.URL,
		AppID:       "verse-web",
		AppSecret:   appSecret,
		CallbackURL: "https://app.example/cosigner/callback",
		Sessions:    sessions,
	})

	result := p.Sign(context.Background(), unsignedTx(t), ops.AuthorityActive)
	if result.Status != StatusDispatched {
		t.Fatalf("expected dispatched, got %s (%s)", result.Status, result.Reason)
	}
	if result.CorrelationID == "" {
		t.Fatal("dispatch must carry a correlation id")
	}
	if received.CorrelationID != result.CorrelationID {
		t.Errorf("dispatch body correlation id %q does not match result %q", received.CorrelationID, result.CorrelationID)
	}
	if received.Account != "alice" {
		t.Errorf("expected account alice, got %q", received.Account)
	}
	if received.Authority != "active" {
		t.Errorf("expected authority active, got %q", received.Authority)
	}

	// The app credential must be a valid HS256 token naming this app.
	token, err := jwt.Parse(assertion, func(tok *jwt.Token) (any, error) {
		return appSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		t.Fatalf("app credential did not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["iss"] != "verse-web" {
		t.Errorf("expected issuer verse-web, got %v", claims["iss"])
	}
	if claims["jti"] != result.CorrelationID {
		t.Errorf("token id should match the correlation id")
	}

	// The session must be registered and consumable exactly once.
	session, ok := sessions.Take(result.CorrelationID)
	if !ok {
		t.Fatal("pending session not registered")
	}
	if session.Account != "alice" || session.Authority != ops.AuthorityActive {
		t.Errorf("unexpected session: %+v", session)
	}
	if _, ok := sessions.Take(result.CorrelationID); ok {
		t.Error("session must be consumed on first take")
	}
}

func TestCoSignerRefusalIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "app not registered", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewCoSignerProvider(CoSignerConfig{
		BaseURL:   srv.URL,
		AppID:     "verse-web",
		AppSecret: []byte("s"),
	})

	result := p.Sign(context.Background(), unsignedTx(t), ops.AuthorityPosting)
	if result.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", result.Status)
	}
	if p.Sessions().Len() != 0 {
		t.Error("failed dispatch must not leave a pending session")
	}
}

func TestCoSignerUnconfiguredIsUnavailable(t *testing.T) {
	p := NewCoSignerProvider(CoSignerConfig{})
	result := p.Sign(context.Background(), unsignedTx(t), ops.AuthorityPosting)
	if result.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", result.Status)
	}
}

func TestSessionRegistryPrunesExpired(t *testing.T) {
	r := NewSessionRegistry(10 * time.Millisecond)
	r.Register(&PendingSession{CorrelationID: "old", CreatedAt: time.Now().Add(-time.Second)})
	r.Register(&PendingSession{CorrelationID: "fresh", CreatedAt: time.Now()})

	if _, ok := r.Take("old"); ok {
		t.Error("expired session should have been pruned")
	}
	if _, ok := r.Take("fresh"); !ok {
		t.Error("fresh session should survive pruning")
	}
}
