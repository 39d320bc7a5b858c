package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Client is a JSON-RPC client for a ledger node.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	networkID  uint32
	nextID     atomic.Int64
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	RPCURL    string
	NetworkID uint32
	Timeout   time.Duration
}

// NewClient creates a new ledger client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		networkID: cfg.NetworkID,
	}, nil
}

// NetworkID returns the network the client signs for.
func (c *Client) NetworkID() uint32 { return c.networkID }

// Call makes a JSON-RPC call to the node. A non-nil error of type *RPCError
// means the node answered and rejected; any other error is transport-level.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      int(c.nextID.Add(1)),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// GetChainStatus returns the dynamic chain state.
func (c *Client) GetChainStatus(ctx context.Context) (*ChainStatus, error) {
	result, err := c.Call(ctx, "get_chain_status", nil)
	if err != nil {
		return nil, err
	}

	var status ChainStatus
	if err := json.Unmarshal(result, &status); err != nil {
		return nil, fmt.Errorf("unmarshal chain status: %w", err)
	}
	return &status, nil
}

// BroadcastTransaction submits a signed transaction to the node.
func (c *Client) BroadcastTransaction(ctx context.Context, tx *Transaction) (*BroadcastResult, error) {
	if !tx.Signed() {
		return nil, fmt.Errorf("transaction is not signed")
	}

	result, err := c.Call(ctx, "broadcast_transaction", []any{tx})
	if err != nil {
		return nil, err
	}

	var br BroadcastResult
	if err := json.Unmarshal(result, &br); err != nil {
		return nil, fmt.Errorf("unmarshal broadcast result: %w", err)
	}
	return &br, nil
}

// GetTransactionStatus returns inclusion state for a transaction id.
func (c *Client) GetTransactionStatus(ctx context.Context, txID string) (*TransactionStatus, error) {
	result, err := c.Call(ctx, "get_transaction_status", []any{txID})
	if err != nil {
		return nil, err
	}

	var ts TransactionStatus
	if err := json.Unmarshal(result, &ts); err != nil {
		return nil, fmt.Errorf("unmarshal transaction status: %w", err)
	}
	return &ts, nil
}

// WaitForInclusion polls the node until the transaction is included, fails,
// or the context expires. A pending or unknown status is retried.
func (c *Client) WaitForInclusion(ctx context.Context, txID string, pollInterval time.Duration) (*TransactionStatus, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := c.GetTransactionStatus(ctx, txID)
			if err != nil {
				if _, ok := err.(*RPCError); ok {
					return nil, err
				}
				continue
			}
			switch status.Status {
			case TxStatusIncluded:
				return status, nil
			case TxStatusFailed:
				return status, fmt.Errorf("transaction %s failed in block %d", txID, status.BlockNum)
			}
		}
	}
}
