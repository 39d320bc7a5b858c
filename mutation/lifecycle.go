package mutation

import (
	"context"
	"sync"

	"github.com/Verse-Network/mutation_layer/ledger"
)

// Status is the lifecycle state of a mutation invocation.
type Status string

const (
	// StatusPending covers the whole span from invocation until settlement,
	// including the time a co-signer dispatch holds control out of process.
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Mutation is the caller's handle on one in-flight mutation. All accessors
// are safe for concurrent use.
type Mutation struct {
	mu sync.Mutex

	status        Status
	outcome       ledger.BroadcastOutcome
	err           *Error
	coherenceErr  error
	correlationID string

	// phase guards the cancellation boundary: once signing has produced a
	// result the broadcast cannot be recalled.
	signed          bool
	cancelRequested bool
	cancelTooLate   bool

	cancel context.CancelFunc
	done   chan struct{}

	settleOnce sync.Once
	onSuccess  func(ledger.BroadcastOutcome)
	onError    func(*Error)
}

func newMutation(cancel context.CancelFunc, onSuccess func(ledger.BroadcastOutcome), onError func(*Error)) *Mutation {
	return &Mutation{
		status:    StatusPending,
		cancel:    cancel,
		done:      make(chan struct{}),
		onSuccess: onSuccess,
		onError:   onError,
	}
}

// Status returns the current lifecycle state.
func (m *Mutation) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Outcome returns the settled broadcast outcome. Zero until success.
func (m *Mutation) Outcome() ledger.BroadcastOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Err returns the settled error, nil on success or while pending.
func (m *Mutation) Err() *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// CoherenceErr reports a cache update failure on an otherwise successful
// mutation. The ledger state changed; only the local cache may be behind.
func (m *Mutation) CoherenceErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coherenceErr
}

// CorrelationID returns the co-signer correlation id when the mutation was
// dispatched out of process, empty otherwise.
func (m *Mutation) CorrelationID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.correlationID
}

// Done is closed when the mutation settles.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until settlement or ctx expiry.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return nil
	}
}

// Cancel requests cancellation. It is honored only before a provider has
// produced a signed result; afterwards it returns false and the mutation
// reports CancelledTooLate, because a transaction handed to broadcast cannot
// be recalled. A dispatched co-signer request is never cancellable.
func (m *Mutation) Cancel() bool {
	m.mu.Lock()
	m.cancelRequested = true
	if m.signed || m.status != StatusPending || m.correlationID != "" {
		m.cancelTooLate = true
		m.mu.Unlock()
		return false
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// CancelledTooLate reports that cancellation was requested after the
// transaction had already left for submission.
func (m *Mutation) CancelledTooLate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelTooLate
}

// markSigned records that signing completed; cancellation from here on is
// too late.
func (m *Mutation) markSigned() {
	m.mu.Lock()
	m.signed = true
	if m.cancelRequested {
		m.cancelTooLate = true
	}
	m.mu.Unlock()
}

func (m *Mutation) markDispatched(correlationID string) {
	m.mu.Lock()
	m.correlationID = correlationID
	m.signed = true
	if m.cancelRequested {
		m.cancelTooLate = true
	}
	m.mu.Unlock()
}

// settleSuccess settles the mutation exactly once with a successful outcome.
func (m *Mutation) settleSuccess(outcome ledger.BroadcastOutcome, coherenceErr error) {
	m.settleOnce.Do(func() {
		m.mu.Lock()
		m.status = StatusSuccess
		m.outcome = outcome
		m.coherenceErr = coherenceErr
		onSuccess := m.onSuccess
		m.mu.Unlock()

		if onSuccess != nil {
			onSuccess(outcome)
		}
		close(m.done)
	})
}

// settleError settles the mutation exactly once with an error.
func (m *Mutation) settleError(err *Error) {
	m.settleOnce.Do(func() {
		m.mu.Lock()
		m.status = StatusError
		m.err = err
		onError := m.onError
		m.mu.Unlock()

		if onError != nil {
			onError(err)
		}
		close(m.done)
	})
}
