package auth

import (
	"context"
	"errors"

	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
)

// SignFunc is a caller-supplied signing capability. It returns the signed
// transaction, or an error wrapping ErrAdapterUnavailable or
// ErrAdapterRejected to steer the fallback chain.
type SignFunc func(ctx context.Context, tx *ledger.Transaction, authority ops.Authority) (*ledger.Transaction, error)

// Sentinel errors adapters wrap to classify their failures.
var (
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrAdapterRejected    = errors.New("adapter rejected")
)

// AdapterProvider exposes a caller-supplied SignFunc as a provider so host
// applications can plug in custom signing.
type AdapterProvider struct {
	fn SignFunc
}

// NewAdapterProvider wraps a SignFunc.
func NewAdapterProvider(fn SignFunc) *AdapterProvider {
	return &AdapterProvider{fn: fn}
}

// Kind returns the provider kind.
func (p *AdapterProvider) Kind() ProviderKind { return KindAdapter }

// Sign delegates to the caller's function and maps its error onto the result
// taxonomy. An unclassified error counts as unavailable so the chain can try
// the configured providers.
func (p *AdapterProvider) Sign(ctx context.Context, tx *ledger.Transaction, authority ops.Authority) Result {
	if p.fn == nil {
		return Unavailable("no adapter function supplied")
	}

	signed, err := p.fn(ctx, tx, authority)
	if err != nil {
		switch {
		case errors.Is(err, ErrAdapterRejected):
			return Rejected(err.Error(), true)
		case errors.Is(err, ErrAdapterUnavailable):
			return Unavailable(err.Error())
		default:
			return Unavailable("adapter failed: " + err.Error())
		}
	}
	if signed == nil || !signed.Signed() {
		return Rejected("adapter returned an unsigned transaction", true)
	}
	return Signed(signed)
}
