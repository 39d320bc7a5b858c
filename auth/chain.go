package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// RejectedError reports a provider that engaged and declined. Terminal: the
// chain must not re-prompt a user who already said no.
type RejectedError struct {
	Provider ProviderKind
	Reason   string
	// Definitive is false when the provider could not distinguish a decline
	// from an abandoned prompt.
	Definitive bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider %s rejected: %s", e.Provider, e.Reason)
}

// ErrNoProviderAvailable means the chain was exhausted with no signed result.
var ErrNoProviderAvailable = errors.New("no signing provider available")

// ExecuteResult is the settled result of one chain execution. Exactly one of
// Outcome (broadcast happened) or Dispatched (co-signer holds control) is
// meaningful.
type ExecuteResult struct {
	Outcome       ledger.BroadcastOutcome
	Dispatched    bool
	CorrelationID string
}

// ChainExecutor tries providers in order until one signs, one rejects, the
// caller cancels, or the chain is exhausted. Once a provider yields a signed
// transaction it is handed to the broadcast executor immediately; the chain
// never resumes afterwards, whatever the broadcast result.
type ChainExecutor struct {
	providers map[ProviderKind]Provider
	executor  *ledger.Executor
	log       *logger.Logger
}

// NewChainExecutor creates a chain executor over the given providers.
func NewChainExecutor(executor *ledger.Executor, log *logger.Logger, providers ...Provider) *ChainExecutor {
	if log == nil {
		log = logger.Default("auth-chain")
	}
	byKind := make(map[ProviderKind]Provider, len(providers))
	for _, p := range providers {
		byKind[p.Kind()] = p
	}
	return &ChainExecutor{
		providers: byKind,
		executor:  executor,
		log:       log,
	}
}

// Register adds or replaces a provider.
func (c *ChainExecutor) Register(p Provider) {
	c.providers[p.Kind()] = p
}

// SignResult is the outcome of running the provider chain without
// broadcasting. Either Tx is a signed transaction or Dispatched is set.
type SignResult struct {
	Tx            *ledger.Transaction
	Dispatched    bool
	CorrelationID string
}

// Execute runs the fallback chain for one unsigned transaction and hands the
// signed result straight to the broadcast executor. Broadcast is never
// aborted by caller cancellation once signing succeeded: a transaction that
// has left the signing step cannot be recalled.
func (c *ChainExecutor) Execute(ctx context.Context, account string, tx *ledger.Transaction, authority ops.Authority, authCtx Context) (ExecuteResult, error) {
	signed, err := c.Sign(ctx, tx, authority, authCtx)
	if err != nil {
		return ExecuteResult{}, err
	}
	if signed.Dispatched {
		return ExecuteResult{
			Dispatched:    true,
			CorrelationID: signed.CorrelationID,
		}, nil
	}

	outcome := c.executor.Submit(context.WithoutCancel(ctx), account, signed.Tx)
	return ExecuteResult{Outcome: outcome}, nil
}

// Sign runs the fallback chain up to a signed transaction or a co-signer
// dispatch, without broadcasting.
func (c *ChainExecutor) Sign(ctx context.Context, tx *ledger.Transaction, authority ops.Authority, authCtx Context) (SignResult, error) {
	for _, kind := range authCtx.EffectiveChain() {
		if err := ctx.Err(); err != nil {
			return SignResult{}, err
		}

		provider, ok := c.resolve(kind, &authCtx)
		if !ok {
			c.log.WithContext(ctx).WithFields(logger.Fields{"provider": string(kind)}).
				Debug("provider not registered, skipping")
			continue
		}

		result := provider.Sign(ctx, tx, authority)
		ledger.ProviderAttempts.WithLabelValues(string(kind), string(result.Status)).Inc()

		switch result.Status {
		case StatusUnavailable:
			c.log.WithContext(ctx).WithFields(logger.Fields{
				"provider": string(kind),
				"reason":   result.Reason,
			}).Debug("provider unavailable, trying next")
			continue

		case StatusRejected:
			if !result.Definitive {
				c.log.WithContext(ctx).WithFields(logger.Fields{
					"provider": string(kind),
					"reason":   result.Reason,
				}).Warn("provider rejection is ambiguous; halting chain anyway")
			}
			return SignResult{}, &RejectedError{
				Provider:   kind,
				Reason:     result.Reason,
				Definitive: result.Definitive,
			}

		case StatusDispatched:
			// Control may leave the process; dispatch is terminal success
			// for orchestration. Settlement arrives through Resume.
			return SignResult{
				Dispatched:    true,
				CorrelationID: result.CorrelationID,
			}, nil

		case StatusSigned:
			return SignResult{Tx: result.Tx}, nil

		default:
			return SignResult{}, fmt.Errorf("provider %s returned unknown status %q", kind, result.Status)
		}
	}

	return SignResult{}, ErrNoProviderAvailable
}

// resolve finds the provider for a chain position. The adapter comes from
// the per-call context rather than the registry.
func (c *ChainExecutor) resolve(kind ProviderKind, authCtx *Context) (Provider, bool) {
	if kind == KindAdapter && authCtx.Adapter != nil {
		return NewAdapterProvider(authCtx.Adapter), true
	}
	p, ok := c.providers[kind]
	return p, ok
}

// Broadcast submits an already-signed transaction, bypassing providers. Used
// when a co-signer session resumes with signatures.
func (c *ChainExecutor) Broadcast(ctx context.Context, account string, tx *ledger.Transaction) ledger.BroadcastOutcome {
	return c.executor.Submit(ctx, account, tx)
}

// WaitForConfirmation exposes the executor's confirmation polling.
func (c *ChainExecutor) WaitForConfirmation(ctx context.Context, txID string) (*ledger.TransactionStatus, error) {
	return c.executor.WaitForConfirmation(ctx, txID)
}
