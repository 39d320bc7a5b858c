package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// OutcomeStatus classifies a broadcast attempt.
type OutcomeStatus string

const (
	StatusConfirmed             OutcomeStatus = "confirmed"
	StatusInsufficientResources OutcomeStatus = "insufficient_resources"
	StatusDuplicate             OutcomeStatus = "duplicate"
	StatusInvalid               OutcomeStatus = "invalid"
	StatusTransport             OutcomeStatus = "transport"
)

// Ledger RPC error codes for rejected transactions. Anything the node reports
// outside these maps to StatusInvalid.
const (
	CodeInsufficientResources = -32003
	CodeDuplicateTransaction  = -32002
	CodeMalformedOperation    = -32001
)

// BroadcastOutcome is the settled result of submitting one signed transaction.
// StatusDuplicate is success-equivalent: the ledger already holds the
// transaction and no different id will ever be produced for it.
type BroadcastOutcome struct {
	Status   OutcomeStatus
	TxID     string
	BlockNum uint64
	Reason   string
	Err      error
}

// Succeeded reports whether the ledger state reflects the transaction.
func (o BroadcastOutcome) Succeeded() bool {
	return o.Status == StatusConfirmed || o.Status == StatusDuplicate
}

// Broadcaster is the node surface the executor depends on.
type Broadcaster interface {
	BroadcastTransaction(ctx context.Context, tx *Transaction) (*BroadcastResult, error)
	WaitForInclusion(ctx context.Context, txID string, pollInterval time.Duration) (*TransactionStatus, error)
}

// Executor submits signed transactions and classifies the result. It applies
// a per-account token bucket ahead of the node call and retries exactly once
// on transport failure.
type Executor struct {
	node Broadcaster
	log  *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int

	confirmationWait time.Duration
	pollInterval     time.Duration
}

// ExecutorConfig holds executor configuration.
type ExecutorConfig struct {
	Node               Broadcaster
	Logger             *logger.Logger
	BroadcastPerSecond int
	BroadcastBurst     int
	ConfirmationWait   time.Duration
	PollInterval       time.Duration
}

// NewExecutor creates a broadcast executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	perSec := cfg.BroadcastPerSecond
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.BroadcastBurst
	if burst <= 0 {
		burst = perSec * 2
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default("broadcast")
	}
	wait := cfg.ConfirmationWait
	if wait <= 0 {
		wait = 2 * time.Minute
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	return &Executor{
		node:             cfg.Node,
		log:              log,
		limiters:         make(map[string]*rate.Limiter),
		perSec:           rate.Limit(perSec),
		burst:            burst,
		confirmationWait: wait,
		pollInterval:     poll,
	}
}

// limiter returns the token bucket for an account.
func (e *Executor) limiter(account string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.limiters[account]
	if !ok {
		l = rate.NewLimiter(e.perSec, e.burst)
		e.limiters[account] = l
	}
	return l
}

// Submit submits a signed transaction on behalf of account and classifies the
// node's answer.
func (e *Executor) Submit(ctx context.Context, account string, tx *Transaction) BroadcastOutcome {
	start := time.Now()
	outcome := e.submit(ctx, account, tx)
	broadcastsTotal.WithLabelValues(string(outcome.Status)).Inc()
	broadcastDuration.WithLabelValues(string(outcome.Status)).Observe(time.Since(start).Seconds())
	return outcome
}

func (e *Executor) submit(ctx context.Context, account string, tx *Transaction) BroadcastOutcome {
	if !tx.Signed() {
		return BroadcastOutcome{
			Status: StatusInvalid,
			Reason: "transaction is not signed",
		}
	}

	if !e.limiter(account).Allow() {
		e.log.WithContext(ctx).WithFields(logger.Fields{"account": account}).
			Warn("broadcast rate limit exceeded")
		return BroadcastOutcome{
			Status: StatusInsufficientResources,
			Reason: "local broadcast rate limit exceeded",
		}
	}

	result, err := e.node.BroadcastTransaction(ctx, tx)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return classifyRejection(rpcErr)
		}
		if ctx.Err() != nil {
			return BroadcastOutcome{Status: StatusTransport, Reason: "context cancelled", Err: err}
		}

		// One immediate retry for transport-level failures only.
		e.log.WithContext(ctx).WithError(err).Warn("broadcast transport failure, retrying once")
		result, err = e.node.BroadcastTransaction(ctx, tx)
		if err != nil {
			if errors.As(err, &rpcErr) {
				return classifyRejection(rpcErr)
			}
			return BroadcastOutcome{Status: StatusTransport, Reason: "broadcast did not complete", Err: err}
		}
	}

	return BroadcastOutcome{
		Status:   StatusConfirmed,
		TxID:     result.ID,
		BlockNum: result.BlockNum,
	}
}

// WaitForConfirmation polls until the transaction is included in a block.
func (e *Executor) WaitForConfirmation(ctx context.Context, txID string) (*TransactionStatus, error) {
	wctx, cancel := context.WithTimeout(ctx, e.confirmationWait)
	defer cancel()
	return e.node.WaitForInclusion(wctx, txID, e.pollInterval)
}

// classifyRejection maps a node rejection onto the broadcast taxonomy. The
// structured rejection name in the error data takes precedence over the code.
func classifyRejection(rpcErr *RPCError) BroadcastOutcome {
	outcome := BroadcastOutcome{Reason: rpcErr.Message, Err: rpcErr}

	name := gjson.GetBytes(rpcErr.Data, "name").String()
	switch name {
	case "insufficient_resources", "rc_exceeded":
		outcome.Status = StatusInsufficientResources
		return outcome
	case "duplicate_transaction":
		outcome.Status = StatusDuplicate
		outcome.TxID = gjson.GetBytes(rpcErr.Data, "existing_id").String()
		return outcome
	}

	switch rpcErr.Code {
	case CodeInsufficientResources:
		outcome.Status = StatusInsufficientResources
	case CodeDuplicateTransaction:
		outcome.Status = StatusDuplicate
		outcome.TxID = gjson.GetBytes(rpcErr.Data, "existing_id").String()
	default:
		// Malformed and semantic rejections surface the same way to callers.
		outcome.Status = StatusInvalid
	}
	return outcome
}
