// Package mutation is the single entry point for ledger writes: it builds the
// operation, runs the signing fallback chain, broadcasts, and keeps the read
// cache coherent before reporting back to the caller.
package mutation

import "fmt"

// ErrorKind is the machine-readable classification callers branch on.
type ErrorKind string

const (
	// ErrValidation means the payload was malformed; no provider was reached.
	ErrValidation ErrorKind = "validation"
	// ErrProviderRejected means a provider engaged and the user or key
	// policy declined. Never retried.
	ErrProviderRejected ErrorKind = "provider_rejected"
	// ErrTransport means the broadcast call did not complete, after its one
	// bounded retry.
	ErrTransport ErrorKind = "transport_failure"
	// ErrLedgerRejected means the node rejected the transaction's semantics
	// or resource budget. Never retried automatically.
	ErrLedgerRejected ErrorKind = "ledger_rejected"
	// ErrNoProvider means the fallback chain was exhausted unsigned.
	ErrNoProvider ErrorKind = "no_provider_available"
	// ErrCancelled means the caller cancelled before a signed result existed.
	ErrCancelled ErrorKind = "cancelled"
	// ErrInternal means the pipeline failed in a way none of the other
	// kinds describe.
	ErrInternal ErrorKind = "internal"
)

// Error is the settled failure of a mutation: a machine-readable kind plus a
// human-readable reason. The façade classifies; it does not prescribe UI text.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
