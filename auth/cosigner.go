package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// PendingSession is a mutation parked while the co-signing service holds
// control. It is keyed by correlation id and consumed exactly once on resume.
type PendingSession struct {
	CorrelationID string
	Account       string
	Authority     ops.Authority
	Tx            *ledger.Transaction
	CreatedAt     time.Time
}

// SessionRegistry tracks pending co-signer sessions.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*PendingSession
	ttl      time.Duration
}

// NewSessionRegistry creates a registry. Sessions older than ttl are dropped
// on access; zero ttl defaults to one hour.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRegistry{
		sessions: make(map[string]*PendingSession),
		ttl:      ttl,
	}
}

// Register stores a pending session.
func (r *SessionRegistry) Register(s *PendingSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.sessions[s.CorrelationID] = s
}

// Take removes and returns the session for a correlation id.
func (r *SessionRegistry) Take(correlationID string) (*PendingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	s, ok := r.sessions[correlationID]
	if ok {
		delete(r.sessions, correlationID)
	}
	return s, ok
}

// Len returns the number of pending sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) prune() {
	cutoff := time.Now().Add(-r.ttl)
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}

// CoSignerProvider delegates signing to a remote co-signing service holding
// or requesting the user's key. Sign dispatches and returns immediately; the
// signed transaction (or the user's decline) arrives later through the
// callback route and the session registry. A dispatched request is not
// cancellable: control may have left the process.
type CoSignerProvider struct {
	baseURL     string
	appID       string
	appSecret   []byte
	callbackURL string
	httpClient  *http.Client
	sessions    *SessionRegistry
	log         *logger.Logger
}

// CoSignerConfig holds co-signer provider configuration.
type CoSignerConfig struct {
	BaseURL     string
	AppID       string
	AppSecret   []byte
	CallbackURL string
	Timeout     time.Duration
	Sessions    *SessionRegistry
	Logger      *logger.Logger
}

// NewCoSignerProvider creates a co-signer provider.
func NewCoSignerProvider(cfg CoSignerConfig) *CoSignerProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionRegistry(0)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default("cosigner")
	}
	return &CoSignerProvider{
		baseURL:     cfg.BaseURL,
		appID:       cfg.AppID,
		appSecret:   cfg.AppSecret,
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: timeout},
		sessions:    sessions,
		log:         log,
	}
}

// Kind returns the provider kind.
func (p *CoSignerProvider) Kind() ProviderKind { return KindCoSigner }

// Sessions exposes the pending session registry.
func (p *CoSignerProvider) Sessions() *SessionRegistry { return p.sessions }

// signRequest is the dispatch payload sent to the co-signing service.
type signRequest struct {
	CorrelationID string              `json:"correlation_id"`
	Account       string              `json:"account"`
	Authority     string              `json:"authority"`
	CallbackURL   string              `json:"callback_url"`
	Transaction   *ledger.Transaction `json:"transaction"`
}

// Sign dispatches the transaction to the co-signing service. A successful
// dispatch is terminal for the fallback chain.
func (p *CoSignerProvider) Sign(ctx context.Context, tx *ledger.Transaction, authority ops.Authority) Result {
	if p.baseURL == "" || p.appID == "" || len(p.appSecret) == 0 {
		return Unavailable("co-signer app credential not configured")
	}

	correlationID := uuid.NewString()

	assertion, err := p.appCredential(tx.Account, correlationID)
	if err != nil {
		return Unavailable("build app credential: " + err.Error())
	}

	body, err := json.Marshal(signRequest{
		CorrelationID: correlationID,
		Account:       tx.Account,
		Authority:     authority.String(),
		CallbackURL:   p.callbackURL,
		Transaction:   tx,
	})
	if err != nil {
		return Unavailable("marshal sign request: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/sign-requests", bytes.NewReader(body))
	if err != nil {
		return Unavailable("create request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+assertion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Unavailable("co-signer not reachable: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return Unavailable(fmt.Sprintf("co-signer refused dispatch: %s - %s", resp.Status, string(respBody)))
	}

	p.sessions.Register(&PendingSession{
		CorrelationID: correlationID,
		Account:       tx.Account,
		Authority:     authority,
		Tx:            tx,
		CreatedAt:     time.Now(),
	})

	p.log.WithContext(ctx).WithFields(logger.Fields{
		"correlation_id": correlationID,
		"account":        tx.Account,
		"authority":      authority.String(),
	}).Info("sign request dispatched to co-signer")

	return Dispatched(correlationID)
}

// appCredential builds the short-lived JWT assertion identifying this
// application to the co-signing service.
func (p *CoSignerProvider) appCredential(account, correlationID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": p.appID,
		"sub": account,
		"aud": p.baseURL,
		"jti": correlationID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	return token.SignedString(p.appSecret)
}
