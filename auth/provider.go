// Package auth turns ledger operations into signed transactions through
// interchangeable signing providers and orchestrates fallback between them.
package auth

import (
	"context"
	"fmt"

	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
)

// ProviderKind identifies a signing backend.
type ProviderKind string

const (
	KindLocalKey  ProviderKind = "local_key"
	KindExtension ProviderKind = "extension"
	KindCoSigner  ProviderKind = "cosigner"
	KindAdapter   ProviderKind = "adapter"
)

// DefaultChain is the provider preference order used when a caller supplies
// none.
var DefaultChain = []ProviderKind{KindLocalKey, KindExtension, KindCoSigner}

// ResultStatus classifies a provider attempt.
type ResultStatus string

const (
	// StatusSigned means the provider produced a broadcast-ready transaction.
	StatusSigned ResultStatus = "signed"
	// StatusRejected means the provider engaged and the user or key policy
	// declined. The fallback chain stops on it.
	StatusRejected ResultStatus = "rejected"
	// StatusUnavailable means the provider could not even attempt. Always
	// safe to fall through.
	StatusUnavailable ResultStatus = "unavailable"
	// StatusDispatched means control left the process (co-signer redirect).
	// Terminal for orchestration; settlement arrives through Resume.
	StatusDispatched ResultStatus = "dispatched"
)

// Result is the outcome of one provider attempt.
type Result struct {
	Status ResultStatus
	Tx     *ledger.Transaction
	Reason string
	// Definitive is false when a rejecting provider cannot distinguish an
	// explicit user decline from an abandoned prompt. The chain still stops,
	// but the orchestrator logs the ambiguity.
	Definitive    bool
	CorrelationID string
}

// Signed builds a signed result.
func Signed(tx *ledger.Transaction) Result {
	return Result{Status: StatusSigned, Tx: tx, Definitive: true}
}

// Rejected builds a rejected result.
func Rejected(reason string, definitive bool) Result {
	return Result{Status: StatusRejected, Reason: reason, Definitive: definitive}
}

// Unavailable builds an unavailable result.
func Unavailable(reason string) Result {
	return Result{Status: StatusUnavailable, Reason: reason, Definitive: true}
}

// Dispatched builds a dispatched result carrying the correlation id.
func Dispatched(correlationID string) Result {
	return Result{Status: StatusDispatched, CorrelationID: correlationID, Definitive: true}
}

// Provider signs transactions at a requested authority level. Sign may
// suspend on user interaction; implementations must honor ctx cancellation
// and bound their own waits.
type Provider interface {
	Kind() ProviderKind
	Sign(ctx context.Context, tx *ledger.Transaction, authority ops.Authority) Result
}

// Context carries the acting identity and provider selection for one
// mutation invocation. Constructed fresh per call and discarded after
// settlement.
type Context struct {
	// Account is the acting account name.
	Account string
	// Adapter, when set, is a caller-supplied signing capability exposed as
	// the adapter provider.
	Adapter SignFunc
	// EnableFallback allows trying further providers after an unavailable
	// one. When false the chain is truncated to its first entry.
	EnableFallback bool
	// Chain is the ordered provider preference. Empty means DefaultChain.
	Chain []ProviderKind
}

// EffectiveChain resolves the provider order for this context.
func (c *Context) EffectiveChain() []ProviderKind {
	chain := c.Chain
	if len(chain) == 0 {
		chain = DefaultChain
	}
	if c.Adapter != nil {
		// A pre-resolved adapter takes precedence over the configured chain.
		chain = append([]ProviderKind{KindAdapter}, chain...)
	}
	if !c.EnableFallback && len(chain) > 1 {
		chain = chain[:1]
	}
	return chain
}

// Validate checks the context is usable.
func (c *Context) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("auth context requires an account")
	}
	return nil
}
