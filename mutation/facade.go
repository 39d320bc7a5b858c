package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Verse-Network/mutation_layer/auth"
	"github.com/Verse-Network/mutation_layer/cache"
	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// ChainStatusProvider supplies the dynamic chain state new transactions
// reference.
type ChainStatusProvider interface {
	GetChainStatus(ctx context.Context) (*ledger.ChainStatus, error)
}

// Options configures one invocation.
type Options struct {
	// Auth carries the acting identity and provider selection.
	Auth auth.Context
	// Optimistic patches the cache before broadcast; a compensating rollback
	// fires on any failed outcome.
	Optimistic bool
	// WaitForConfirmation polls the node for block inclusion after a
	// confirmed broadcast before settling.
	WaitForConfirmation bool
	// OnSuccess runs exactly once, after cache coherence has been applied,
	// so it can assume the cache already reflects the change.
	OnSuccess func(ledger.BroadcastOutcome)
	// OnError runs exactly once on a settled failure.
	OnError func(*Error)
}

// Facade is the single entry point for ledger mutations.
type Facade struct {
	status    ChainStatusProvider
	chain     *auth.ChainExecutor
	coherence *cache.Adapter
	log       *logger.Logger

	mu      sync.Mutex
	pending map[string]*pendingDispatch
}

// pendingDispatch is a mutation parked behind a co-signer dispatch, waiting
// for Resume.
type pendingDispatch struct {
	mutation    *Mutation
	payload     ops.Payload
	account     string
	tx          *ledger.Transaction
	reservation *cache.Reservation
	wait        bool
}

// FacadeConfig holds façade configuration.
type FacadeConfig struct {
	Status    ChainStatusProvider
	Chain     *auth.ChainExecutor
	Coherence *cache.Adapter
	Logger    *logger.Logger
}

// NewFacade creates the mutation façade.
func NewFacade(cfg FacadeConfig) (*Facade, error) {
	if cfg.Status == nil {
		return nil, fmt.Errorf("chain status provider is required")
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain executor is required")
	}
	if cfg.Coherence == nil {
		return nil, fmt.Errorf("coherence adapter is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default("mutation")
	}
	return &Facade{
		status:    cfg.Status,
		chain:     cfg.Chain,
		coherence: cfg.Coherence,
		log:       log,
		pending:   make(map[string]*pendingDispatch),
	}, nil
}

// Invoke starts one mutation. The payload is validated synchronously; the
// rest of the pipeline runs in its own goroutine and settles the returned
// handle. Callbacks fire exactly once each, after cache coherence.
func (f *Facade) Invoke(ctx context.Context, payload ops.Payload, opts Options) *Mutation {
	invokeCtx, cancel := context.WithCancel(ctx)
	m := newMutation(cancel, opts.OnSuccess, opts.OnError)

	if err := opts.Auth.Validate(); err != nil {
		cancel()
		m.settleError(&Error{Kind: ErrValidation, Reason: err.Error(), Err: err})
		return m
	}

	op, err := ops.Build(payload)
	if err != nil {
		cancel()
		m.settleError(classifyBuildError(err))
		return m
	}

	go f.run(invokeCtx, cancel, m, payload, op, opts)
	return m
}

func (f *Facade) run(ctx context.Context, cancel context.CancelFunc, m *Mutation, payload ops.Payload, op ops.Operation, opts Options) {
	defer cancel()

	authority := ops.RequiredAuthority(payload.Kind())
	account := opts.Auth.Account

	status, err := f.status.GetChainStatus(ctx)
	if err != nil {
		m.settleError(classifyPipelineError(ctx, err))
		return
	}

	tx, err := ledger.NewTransaction(status, account, []ops.Operation{op})
	if err != nil {
		m.settleError(&Error{Kind: ErrValidation, Reason: err.Error(), Err: err})
		return
	}

	var reservation *cache.Reservation
	if opts.Optimistic {
		reservation, err = f.coherence.ApplyOptimistic(ctx, payload)
		if err != nil {
			f.log.WithContext(ctx).WithError(err).WithFields(logger.Fields{
				"kind": string(payload.Kind()),
			}).Warn("optimistic pre-patch failed, continuing without it")
			reservation = nil
		}
	}

	signed, err := f.chain.Sign(ctx, tx, authority, opts.Auth)
	if err != nil {
		f.rollbackReservation(payload, reservation)
		m.settleError(classifySignError(ctx, err))
		return
	}

	if signed.Dispatched {
		f.parkDispatch(m, payload, account, tx, reservation, opts, signed.CorrelationID)
		return
	}

	m.markSigned()

	// The transaction has left for submission; caller cancellation no
	// longer applies.
	outcome := f.chain.Broadcast(context.WithoutCancel(ctx), account, signed.Tx)
	f.settle(context.WithoutCancel(ctx), m, payload, outcome, reservation, opts.WaitForConfirmation)
}

// parkDispatch records a co-signer dispatch so Resume can settle it later.
func (f *Facade) parkDispatch(m *Mutation, payload ops.Payload, account string, tx *ledger.Transaction, reservation *cache.Reservation, opts Options, correlationID string) {
	f.mu.Lock()
	f.pending[correlationID] = &pendingDispatch{
		mutation:    m,
		payload:     payload,
		account:     account,
		tx:          tx,
		reservation: reservation,
		wait:        opts.WaitForConfirmation,
	}
	f.mu.Unlock()

	m.markDispatched(correlationID)

	f.log.WithFields(logger.Fields{
		"correlation_id": correlationID,
		"account":        account,
		"kind":           string(payload.Kind()),
	}).Info("mutation parked awaiting co-signer return")
}

// Resume settles a mutation parked behind a co-signer dispatch. It is the
// "resume" entry point the callback route feeds; correlationID keys the
// pending mutation.
func (f *Facade) Resume(ctx context.Context, correlationID string, signatures []string, declined bool, reason string) error {
	f.mu.Lock()
	pd, ok := f.pending[correlationID]
	if ok {
		delete(f.pending, correlationID)
	}
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending mutation for correlation id %s", correlationID)
	}

	if declined {
		if reason == "" {
			reason = "user declined at the co-signing service"
		}
		f.rollbackReservation(pd.payload, pd.reservation)
		pd.mutation.settleError(&Error{Kind: ErrProviderRejected, Reason: reason})
		return nil
	}

	if len(signatures) == 0 {
		f.rollbackReservation(pd.payload, pd.reservation)
		pd.mutation.settleError(&Error{Kind: ErrProviderRejected, Reason: "co-signer returned no signatures"})
		return nil
	}

	signedTx := *pd.tx
	signedTx.Signatures = append(append([]string{}, pd.tx.Signatures...), signatures...)

	outcome := f.chain.Broadcast(context.WithoutCancel(ctx), pd.account, &signedTx)
	f.settle(context.WithoutCancel(ctx), pd.mutation, pd.payload, outcome, pd.reservation, pd.wait)
	return nil
}

// PendingDispatches returns the number of mutations awaiting a co-signer
// return.
func (f *Facade) PendingDispatches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// settle applies cache coherence and settles the handle. Coherence runs
// before callbacks so success handlers observe the updated cache; a
// coherence failure is logged and surfaced separately but never turns a
// confirmed mutation into an error.
func (f *Facade) settle(ctx context.Context, m *Mutation, payload ops.Payload, outcome ledger.BroadcastOutcome, reservation *cache.Reservation, waitForConfirmation bool) {
	if outcome.Succeeded() && waitForConfirmation && outcome.TxID != "" {
		if status, err := f.chain.WaitForConfirmation(ctx, outcome.TxID); err != nil {
			f.log.WithContext(ctx).WithError(err).WithFields(logger.Fields{
				"tx_id": outcome.TxID,
			}).Warn("confirmation wait did not complete")
		} else if status != nil {
			outcome.BlockNum = status.BlockNum
		}
	}

	coherenceErr := f.coherence.OnSettled(ctx, payload, outcome, reservation)

	if outcome.Succeeded() {
		m.settleSuccess(outcome, coherenceErr)
		return
	}
	m.settleError(classifyOutcome(outcome))
}

func (f *Facade) rollbackReservation(payload ops.Payload, reservation *cache.Reservation) {
	if reservation == nil {
		return
	}
	// A failed outcome with a reservation triggers the compensating
	// rollback inside the adapter.
	_ = f.coherence.OnSettled(context.Background(), payload, ledger.BroadcastOutcome{
		Status: ledger.StatusInvalid,
	}, reservation)
}

func classifyBuildError(err error) *Error {
	return &Error{Kind: ErrValidation, Reason: err.Error(), Err: err}
}

func classifySignError(ctx context.Context, err error) *Error {
	var rejected *auth.RejectedError
	switch {
	case errors.As(err, &rejected):
		return &Error{Kind: ErrProviderRejected, Reason: rejected.Reason, Err: err}
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return &Error{Kind: ErrCancelled, Reason: "mutation cancelled before signing completed", Err: err}
	case errors.Is(err, auth.ErrNoProviderAvailable):
		return &Error{Kind: ErrNoProvider, Reason: "no signing provider could satisfy the request", Err: err}
	default:
		return &Error{Kind: ErrInternal, Reason: err.Error(), Err: err}
	}
}

func classifyPipelineError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return &Error{Kind: ErrCancelled, Reason: "mutation cancelled", Err: err}
	}
	return &Error{Kind: ErrTransport, Reason: err.Error(), Err: err}
}

func classifyOutcome(outcome ledger.BroadcastOutcome) *Error {
	switch outcome.Status {
	case ledger.StatusTransport:
		return &Error{Kind: ErrTransport, Reason: outcome.Reason, Err: outcome.Err}
	default:
		return &Error{Kind: ErrLedgerRejected, Reason: outcome.Reason, Err: outcome.Err}
	}
}
