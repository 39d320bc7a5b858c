// Package ledger provides the RPC client and broadcast executor for the
// content platform's ledger.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Verse-Network/mutation_layer/ops"
)

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// RPCError is a ledger-reported error. Data carries the node's structured
// rejection payload when present.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
}

// ChainStatus is the subset of dynamic chain state needed to reference a
// recent block in new transactions.
type ChainStatus struct {
	HeadBlockNumber uint64 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
	Time            string `json:"time"`
}

// Transaction is a broadcast-ready transaction referencing a recent block.
// Operations are immutable once attached; signing appends signatures only.
type Transaction struct {
	RefBlockNum    uint16          `json:"ref_block_num"`
	RefBlockPrefix uint32          `json:"ref_block_prefix"`
	Expiration     time.Time       `json:"expiration"`
	Operations     []ops.Operation `json:"operations"`
	Signatures     []string        `json:"signatures"`

	// Account is the acting account, carried for signing prompts. It is not
	// part of the wire encoding or the signing digest.
	Account string `json:"-"`
}

// DefaultExpiration is how far in the future new transactions expire.
const DefaultExpiration = time.Minute

// NewTransaction builds an unsigned transaction for account referencing the
// current head block reported by status.
func NewTransaction(status *ChainStatus, account string, operations []ops.Operation) (*Transaction, error) {
	if account == "" {
		return nil, fmt.Errorf("transaction requires an acting account")
	}
	if len(operations) == 0 {
		return nil, fmt.Errorf("transaction requires at least one operation")
	}
	if len(status.HeadBlockID) < 16 {
		return nil, fmt.Errorf("malformed head block id %q", status.HeadBlockID)
	}

	var prefix uint32
	if _, err := fmt.Sscanf(status.HeadBlockID[8:16], "%08x", &prefix); err != nil {
		return nil, fmt.Errorf("parse head block prefix: %w", err)
	}

	return &Transaction{
		RefBlockNum:    uint16(status.HeadBlockNumber & 0xffff),
		RefBlockPrefix: prefix,
		Expiration:     time.Now().UTC().Add(DefaultExpiration).Truncate(time.Second),
		Operations:     operations,
		Account:        account,
	}, nil
}

// SigningDigest returns the hash providers sign: SHA-256 over the network id
// and the canonical JSON encoding of the unsigned transaction fields.
func (t *Transaction) SigningDigest(networkID uint32) ([]byte, error) {
	unsigned := struct {
		RefBlockNum    uint16          `json:"ref_block_num"`
		RefBlockPrefix uint32          `json:"ref_block_prefix"`
		Expiration     time.Time       `json:"expiration"`
		Operations     []ops.Operation `json:"operations"`
	}{t.RefBlockNum, t.RefBlockPrefix, t.Expiration, t.Operations}

	body, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}

	h := sha256.New()
	var net [4]byte
	binary.LittleEndian.PutUint32(net[:], networkID)
	h.Write(net[:])
	h.Write(body)
	return h.Sum(nil), nil
}

// Signed reports whether the transaction carries at least one signature.
func (t *Transaction) Signed() bool { return len(t.Signatures) > 0 }

// BroadcastResult is the node's acceptance response.
type BroadcastResult struct {
	ID       string `json:"id"`
	BlockNum uint64 `json:"block_num,omitempty"`
}

// TransactionStatus reports inclusion state for a broadcast transaction.
type TransactionStatus struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // pending, included, failed, unknown
	BlockNum uint64 `json:"block_num,omitempty"`
}

// Transaction status values returned by the node.
const (
	TxStatusPending  = "pending"
	TxStatusIncluded = "included"
	TxStatusFailed   = "failed"
	TxStatusUnknown  = "unknown"
)
