package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Verse-Network/mutation_layer/ops"
)

// mockNode scripts BroadcastTransaction answers in order.
type mockNode struct {
	results   []*BroadcastResult
	errs      []error
	calls     int
	inclusion *TransactionStatus
}

func (m *mockNode) BroadcastTransaction(ctx context.Context, tx *Transaction) (*BroadcastResult, error) {
	i := m.calls
	m.calls++
	if i >= len(m.errs) {
		i = len(m.errs) - 1
	}
	return m.results[i], m.errs[i]
}

func (m *mockNode) WaitForInclusion(ctx context.Context, txID string, pollInterval time.Duration) (*TransactionStatus, error) {
	if m.inclusion == nil {
		return nil, errors.New("no inclusion scripted")
	}
	return m.inclusion, nil
}

func signedTx(t *testing.T) *Transaction {
	t.Helper()
	status := &ChainStatus{HeadBlockNumber: 42, HeadBlockID: "00fe12abdeadbeefcafe0000"}
	tx, err := NewTransaction(status, "alice", []ops.Operation{sampleOp(t)})
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	tx.Signatures = []string{"deadbeef"}
	return tx
}

func newTestExecutor(node Broadcaster) *Executor {
	return NewExecutor(ExecutorConfig{
		Node:               node,
		BroadcastPerSecond: 1000,
		BroadcastBurst:     1000,
	})
}

func TestSubmitConfirmed(t *testing.T) {
	node := &mockNode{
		results: []*BroadcastResult{{ID: "tx1", BlockNum: 99}},
		errs:    []error{nil},
	}
	outcome := newTestExecutor(node).Submit(context.Background(), "alice", signedTx(t))

	if outcome.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.TxID != "tx1" || outcome.BlockNum != 99 {
		t.Errorf("unexpected result: %+v", outcome)
	}
	if !outcome.Succeeded() {
		t.Error("confirmed outcome should report success")
	}
}

func TestSubmitRejectsUnsigned(t *testing.T) {
	node := &mockNode{results: []*BroadcastResult{nil}, errs: []error{nil}}
	status := &ChainStatus{HeadBlockNumber: 42, HeadBlockID: "00fe12abdeadbeefcafe0000"}
	tx, _ := NewTransaction(status, "alice", []ops.Operation{sampleOp(t)})

	outcome := newTestExecutor(node).Submit(context.Background(), "alice", tx)
	if outcome.Status != StatusInvalid {
		t.Fatalf("expected invalid, got %s", outcome.Status)
	}
	if node.calls != 0 {
		t.Error("unsigned transaction must not reach the node")
	}
}

func TestSubmitRetriesTransportOnce(t *testing.T) {
	node := &mockNode{
		results: []*BroadcastResult{nil, {ID: "tx2"}},
		errs:    []error{errors.New("connection reset"), nil},
	}
	outcome := newTestExecutor(node).Submit(context.Background(), "alice", signedTx(t))

	if outcome.Status != StatusConfirmed {
		t.Fatalf("expected confirmed after retry, got %s", outcome.Status)
	}
	if node.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", node.calls)
	}
}

func TestSubmitTransportFailureAfterRetry(t *testing.T) {
	node := &mockNode{
		results: []*BroadcastResult{nil, nil},
		errs:    []error{errors.New("timeout"), errors.New("timeout")},
	}
	outcome := newTestExecutor(node).Submit(context.Background(), "alice", signedTx(t))

	if outcome.Status != StatusTransport {
		t.Fatalf("expected transport, got %s", outcome.Status)
	}
	if node.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", node.calls)
	}
	if outcome.Succeeded() {
		t.Error("transport outcome must not report success")
	}
}

func TestSubmitDoesNotRetryNodeRejection(t *testing.T) {
	node := &mockNode{
		results: []*BroadcastResult{nil},
		errs:    []error{&RPCError{Code: CodeMalformedOperation, Message: "bad op"}},
	}
	outcome := newTestExecutor(node).Submit(context.Background(), "alice", signedTx(t))

	if outcome.Status != StatusInvalid {
		t.Fatalf("expected invalid, got %s", outcome.Status)
	}
	if node.calls != 1 {
		t.Errorf("node rejection must not be retried, got %d attempts", node.calls)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	node := &mockNode{results: []*BroadcastResult{{ID: "tx"}}, errs: []error{nil}}
	e := NewExecutor(ExecutorConfig{Node: node, BroadcastPerSecond: 1, BroadcastBurst: 1})

	first := e.Submit(context.Background(), "alice", signedTx(t))
	if first.Status != StatusConfirmed {
		t.Fatalf("first submit should pass: %s", first.Status)
	}
	second := e.Submit(context.Background(), "alice", signedTx(t))
	if second.Status != StatusInsufficientResources {
		t.Fatalf("expected local rate limit, got %s", second.Status)
	}

	// Buckets are per account; a different account is unaffected.
	other := e.Submit(context.Background(), "bob", signedTx(t))
	if other.Status != StatusConfirmed {
		t.Fatalf("other account should not share the bucket: %s", other.Status)
	}
}

func TestClassifyRejection(t *testing.T) {
	cases := []struct {
		name   string
		err    *RPCError
		status OutcomeStatus
		txID   string
	}{
		{
			"structured rc name",
			&RPCError{Code: -1, Message: "x", Data: json.RawMessage(`{"name":"rc_exceeded"}`)},
			StatusInsufficientResources, "",
		},
		{
			"structured duplicate with existing id",
			&RPCError{Code: -1, Message: "x", Data: json.RawMessage(`{"name":"duplicate_transaction","existing_id":"tx9"}`)},
			StatusDuplicate, "tx9",
		},
		{
			"resource code fallback",
			&RPCError{Code: CodeInsufficientResources, Message: "x"},
			StatusInsufficientResources, "",
		},
		{
			"duplicate code fallback",
			&RPCError{Code: CodeDuplicateTransaction, Message: "x"},
			StatusDuplicate, "",
		},
		{
			"unknown code is invalid",
			&RPCError{Code: -99999, Message: "x"},
			StatusInvalid, "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := classifyRejection(tc.err)
			if outcome.Status != tc.status {
				t.Errorf("expected %s, got %s", tc.status, outcome.Status)
			}
			if outcome.TxID != tc.txID {
				t.Errorf("expected tx id %q, got %q", tc.txID, outcome.TxID)
			}
		})
	}
}

func TestDuplicateIsSuccessEquivalent(t *testing.T) {
	node := &mockNode{
		results: []*BroadcastResult{nil},
		errs: []error{&RPCError{
			Code:    CodeDuplicateTransaction,
			Message: "already known",
			Data:    json.RawMessage(`{"name":"duplicate_transaction","existing_id":"tx7"}`),
		}},
	}
	outcome := newTestExecutor(node).Submit(context.Background(), "alice", signedTx(t))

	if outcome.Status != StatusDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome.Status)
	}
	if !outcome.Succeeded() {
		t.Error("duplicate must count as success")
	}
	if outcome.TxID != "tx7" {
		t.Errorf("expected existing id tx7, got %q", outcome.TxID)
	}
}
