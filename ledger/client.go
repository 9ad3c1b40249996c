// Package ledger is a client for the remote ledger node's HTTP surface:
// best-block reads, account state reads, read-only contract calls, and raw
// transaction submission.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is the node's best-block descriptor. The leading bytes of its id form
// the block reference embedded in new transactions.
type Block struct {
	ID        string `json:"id"`
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
	ParentID  string `json:"parentID"`
}

// Ref derives the transaction block reference from the block id.
func (b *Block) Ref() ([8]byte, error) {
	if b == nil {
		return [8]byte{}, fmt.Errorf("ledger: nil block")
	}
	return BlockRefFromID(b.ID)
}

// Account is the node's account state: reward-token balance and the gas-token
// balance used for fee payment.
type Account struct {
	Balance *hexutil.Big `json:"balance"`
	Energy  *hexutil.Big `json:"energy"`
}

// CallResult is a single clause output from a read-only contract call.
type CallResult struct {
	Data     hexutil.Bytes `json:"data"`
	Reverted bool          `json:"reverted"`
}

// NodeError carries a non-2xx node response. The body is surfaced verbatim so
// callers see the node's stated reason, not a summary; for transaction
// submission this is the rejection reason.
type NodeError struct {
	StatusCode int
	Body       string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("ledger: node error: status=%d body=%s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client talks to a single ledger node. Read operations retry a bounded
// number of times; submission never retries, since a duplicate submission
// could double-spend the treasury allocation.
type Client struct {
	baseURL     string
	http        *http.Client
	readRetries int
	retryDelay  time.Duration
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithReadRetries sets the retry count for best-block and balance reads.
func WithReadRetries(n int) Option {
	return func(c *Client) { c.readRetries = n }
}

// NewClient constructs a node client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 10 * time.Second},
		readRetries: 2,
		retryDelay:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BestBlock fetches the node's latest block descriptor.
func (c *Client) BestBlock(ctx context.Context) (*Block, error) {
	var block Block
	if err := c.getWithRetry(ctx, "/blocks/best", &block); err != nil {
		return nil, err
	}
	if block.ID == "" {
		return nil, fmt.Errorf("ledger: best block response missing id")
	}
	return &block, nil
}

// Account fetches the account state for an address.
func (c *Client) Account(ctx context.Context, address common.Address) (*Account, error) {
	var account Account
	if err := c.getWithRetry(ctx, "/accounts/"+address.Hex(), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GasBalance returns the gas-token balance for an address. It satisfies the
// sponsoring engine's BalanceReader.
func (c *Client) GasBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("ledger: invalid address %q", address)
	}
	account, err := c.Account(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	if account.Energy == nil {
		return big.NewInt(0), nil
	}
	return (*big.Int)(account.Energy), nil
}

// CallContract executes a read-only clause against a contract and returns the
// raw return data.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	payload := map[string]interface{}{
		"clauses": []map[string]string{{
			"to":    to.Hex(),
			"value": "0x0",
			"data":  hexutil.Encode(data),
		}},
	}
	var results []CallResult
	err := c.withRetry(ctx, func() error {
		return c.post(ctx, "/accounts/"+to.Hex(), payload, &results)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("ledger: empty call result")
	}
	if results[0].Reverted {
		return nil, fmt.Errorf("ledger: contract call reverted")
	}
	return results[0].Data, nil
}

// SubmitTransaction posts a raw signed transaction and returns the node's
// transaction id. Rejections surface the node's response body.
func (c *Client) SubmitTransaction(ctx context.Context, raw string) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/transactions", map[string]string{"raw": raw}, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("ledger: submission response missing transaction id")
	}
	return result.ID, nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, out interface{}) error {
	return c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		return c.do(req, out)
	})
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &NodeError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	attempts := c.readRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
