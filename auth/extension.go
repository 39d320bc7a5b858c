package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// ExtensionProvider delegates signing to an out-of-process signer the user
// controls, reached over a local websocket bridge. The wait for the user is
// bounded: an unanswered prompt converts to a rejection with a timeout
// reason instead of hanging the chain.
type ExtensionProvider struct {
	bridgeURL string
	networkID uint32
	timeout   time.Duration
	dialer    *websocket.Dialer
	log       *logger.Logger
}

// ExtensionConfig holds extension provider configuration.
type ExtensionConfig struct {
	BridgeURL string
	NetworkID uint32
	Timeout   time.Duration
	Logger    *logger.Logger
}

// NewExtensionProvider creates an extension provider.
func NewExtensionProvider(cfg ExtensionConfig) *ExtensionProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default("extension-signer")
	}
	return &ExtensionProvider{
		bridgeURL: cfg.BridgeURL,
		networkID: cfg.NetworkID,
		timeout:   timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Kind returns the provider kind.
func (p *ExtensionProvider) Kind() ProviderKind { return KindExtension }

// signPrompt is the request sent across the bridge.
type signPrompt struct {
	RequestID  string          `json:"request_id"`
	Account    string          `json:"account"`
	Authority  string          `json:"authority"`
	Digest     string          `json:"digest"` // hex
	Operations []ops.Operation `json:"operations"`
}

// signAnswer is the signer's reply.
type signAnswer struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Signature string `json:"signature"` // hex, present when approved
	Reason    string `json:"reason,omitempty"`
}

// Sign forwards a signing prompt to the external signer and waits for the
// user's answer within the configured timeout.
func (p *ExtensionProvider) Sign(ctx context.Context, tx *ledger.Transaction, authority ops.Authority) Result {
	if p.bridgeURL == "" {
		return Unavailable("signer bridge not configured")
	}

	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, _, err := p.dialer.DialContext(dctx, p.bridgeURL, nil)
	if err != nil {
		// Bridge absent means the signer is not installed or not running.
		return Unavailable(fmt.Sprintf("signer bridge not reachable: %v", err))
	}
	defer conn.Close()

	digest, err := tx.SigningDigest(p.networkID)
	if err != nil {
		return Rejected("compute signing digest: "+err.Error(), true)
	}

	prompt := signPrompt{
		RequestID:  uuid.NewString(),
		Account:    tx.Account,
		Authority:  authority.String(),
		Digest:     hex.EncodeToString(digest),
		Operations: tx.Operations,
	}

	if err := conn.WriteJSON(prompt); err != nil {
		return Unavailable("send signing prompt: " + err.Error())
	}

	deadline := time.Now().Add(p.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	var answer signAnswer
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			// The user abandoned the prompt or the bridge died mid-wait. Not
			// definitively a decline, but the chain must not re-prompt.
			return Rejected("external signer did not answer within "+p.timeout.String(), false)
		}
		if err := json.Unmarshal(msg, &answer); err != nil {
			p.log.WithContext(ctx).WithError(err).Warn("discarding malformed bridge message")
			continue
		}
		if answer.RequestID == prompt.RequestID {
			break
		}
	}

	if !answer.Approved {
		reason := answer.Reason
		if reason == "" {
			reason = "user declined the signing prompt"
		}
		return Rejected(reason, true)
	}

	if answer.Signature == "" {
		return Rejected("signer approved without a signature", true)
	}

	signed := *tx
	signed.Signatures = append(append([]string{}, tx.Signatures...), answer.Signature)
	return Signed(&signed)
}
