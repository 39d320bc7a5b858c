// Package ops builds ledger operations from typed mutation payloads.
//
// Builders are pure: no network access, no cache access. Each builder owns
// exactly one operation kind, and the kind set is closed so the authority and
// cache-invalidation tables can be checked exhaustively.
package ops

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a mutation kind.
type Kind string

const (
	KindVote        Kind = "vote"
	KindComment     Kind = "comment"
	KindTransfer    Kind = "transfer"
	KindDelegate    Kind = "delegate"
	KindWitnessVote Kind = "witness_vote"
	KindSubscribe   Kind = "subscribe"
	KindSetRole     Kind = "set_role"
	KindClaimReward Kind = "claim_reward"
)

// Kinds returns the closed set of mutation kinds.
func Kinds() []Kind {
	return []Kind{
		KindVote,
		KindComment,
		KindTransfer,
		KindDelegate,
		KindWitnessVote,
		KindSubscribe,
		KindSetRole,
		KindClaimReward,
	}
}

// Operation is a single ledger-native instruction. Immutable once built;
// identity is structural.
type Operation struct {
	Kind   Kind            `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// ValidationError reports a structurally invalid payload. It never reaches a
// signing provider.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Amount is a ledger asset quantity in base units with a symbol.
type Amount struct {
	Units  int64  `json:"units"`
	Symbol string `json:"symbol"`
}

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Units, a.Symbol)
}

func (a Amount) validate(field string) error {
	if a.Units <= 0 {
		return invalid(field, "must be positive")
	}
	if a.Symbol == "" {
		return invalid(field+".symbol", "is required")
	}
	return nil
}

func marshalOp(kind Kind, params any) (Operation, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Operation{}, fmt.Errorf("marshal %s params: %w", kind, err)
	}
	return Operation{Kind: kind, Params: raw}, nil
}
