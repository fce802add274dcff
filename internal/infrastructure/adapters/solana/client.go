// Package solana is a minimal Solana JSON-RPC client and the CCTP executor
// built on it.
package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/httpclient"
)

const (
	DevnetRPCURL  = "https://api.devnet.solana.com"
	MainnetRPCURL = "https://api.mainnet-beta.solana.com"

	defaultTimeout       = 15 * time.Second
	MaxRequestsPerSecond = 40
	defaultCommitment    = "confirmed"
)

// Config represents Solana RPC configuration
type Config struct {
	RPCURL     string
	Timeout    time.Duration
	MaxRetries int
	Commitment string
}

// Client issues JSON-RPC calls against one Solana node
type Client struct {
	config Config
	http   *httpclient.Client
	nextID atomic.Uint64
	logger *zap.Logger
}

// NewClient creates a new Solana RPC client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RPCURL == "" {
		config.RPCURL = DevnetRPCURL
	}
	if config.Commitment == "" {
		config.Commitment = defaultCommitment
	}
	return &Client{
		config: config,
		http: httpclient.New(httpclient.Config{
			Name:              "SolanaRPC",
			BaseURL:           config.RPCURL,
			Timeout:           config.Timeout,
			MaxRetries:        config.MaxRetries,
			RequestsPerSecond: MaxRequestsPerSecond,
		}, logger),
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the node
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc error [%d]: %s", e.Code, e.Message)
}

type accountInfoResult struct {
	Value *struct {
		Lamports uint64 `json:"lamports"`
		Owner    string `json:"owner"`
	} `json:"value"`
}

// AccountExists reports whether address holds an account.
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	var res accountInfoResult
	params := []interface{}{address, map[string]string{
		"encoding":   "base64",
		"commitment": c.config.Commitment,
	}}
	if err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return false, fmt.Errorf("get account info for %s: %w", address, err)
	}
	return res.Value != nil, nil
}

// MinimumBalanceForRentExemption returns the lamports an account of size
// bytes needs to be rent exempt.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	if err := c.call(ctx, "getMinimumBalanceForRentExemption", []interface{}{size}, &lamports); err != nil {
		return 0, fmt.Errorf("get rent exemption: %w", err)
	}
	return lamports, nil
}

// GetSlot returns the current slot at the configured commitment.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	params := []interface{}{map[string]string{"commitment": c.config.Commitment}}
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	var resp rpcResponse
	err := c.http.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "", Route: method, Body: req}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}
