// Package executorapi is the client for the executor's quoting and relay
// status service.
package executorapi

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/httpclient"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

const (
	defaultTimeout       = 15 * time.Second
	MaxRequestsPerSecond = 10
)

// Config represents executor API client configuration
type Config struct {
	BaseURL    string
	Network    entities.Network
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the executor API
type Client struct {
	config Config
	http   *httpclient.Client
	logger *zap.Logger
}

// NewClient creates a new executor API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		config.BaseURL = entities.ExecutorAPIBaseURL(config.Network)
	}
	return &Client{
		config: config,
		http: httpclient.New(httpclient.Config{
			Name:              "ExecutorAPI",
			BaseURL:           config.BaseURL,
			Timeout:           config.Timeout,
			MaxRetries:        config.MaxRetries,
			RequestsPerSecond: MaxRequestsPerSecond,
		}, logger),
		logger: logger,
	}
}

// Capabilities returns what the executor supports, keyed by chain. Chains the
// executor lists but this service does not know are skipped.
func (c *Client) Capabilities(ctx context.Context) (map[entities.Chain]entities.Capabilities, error) {
	var resp CapabilitiesResponse
	if err := c.do(ctx, httpclient.Request{Path: "/v0/capabilities"}, &resp); err != nil {
		return nil, fmt.Errorf("fetch capabilities failed: %w", err)
	}

	out := make(map[entities.Chain]entities.Capabilities, len(resp))
	for key, caps := range resp {
		id, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			c.logger.Debug("Skipping capabilities entry with invalid chain id", zap.String("key", key))
			continue
		}
		chain, ok := entities.ChainFromID(uint16(id))
		if !ok {
			continue
		}
		parsed, err := caps.toEntity()
		if err != nil {
			return nil, fmt.Errorf("capabilities for %s: %w", chain, err)
		}
		out[chain] = parsed
	}
	return out, nil
}

func (c Capabilities) toEntity() (entities.Capabilities, error) {
	out := entities.Capabilities{
		RequestPrefixes: make([]layout.RequestPrefix, 0, len(c.RequestPrefixes)),
	}
	for _, p := range c.RequestPrefixes {
		out.RequestPrefixes = append(out.RequestPrefixes, layout.RequestPrefix(p))
	}
	var err error
	if out.GasDropOffLimit, err = parseAmount(c.GasDropOffLimit, "gasDropOffLimit"); err != nil {
		return out, err
	}
	if out.MaxGasLimit, err = parseAmount(c.MaxGasLimit, "maxGasLimit"); err != nil {
		return out, err
	}
	if out.MaxMsgValue, err = parseAmount(c.MaxMsgValue, "maxMsgValue"); err != nil {
		return out, err
	}
	return out, nil
}

// SignedQuote requests a quote for relaying from src to dst with the given
// serialized relay instructions.
func (c *Client) SignedQuote(ctx context.Context, src, dst entities.Chain, relayInstructions []byte) (*QuoteResponse, error) {
	body := QuoteRequest{
		SrcChain:          src.ID(),
		DstChain:          dst.ID(),
		RelayInstructions: layout.EncodeHex(relayInstructions),
	}
	var resp QuoteResponse
	if err := c.do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/v0/quote", Body: body}, &resp); err != nil {
		return nil, fmt.Errorf("fetch signed quote failed: %w", err)
	}
	return &resp, nil
}

// Status returns the relays the executor has indexed for a source transaction.
func (c *Client) Status(ctx context.Context, txHash string, chain entities.Chain) ([]StatusResponse, error) {
	body := StatusRequest{TxHash: txHash, ChainID: chain.ID()}
	var resp []StatusResponse
	if err := c.do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/v0/status/tx", Body: body}, &resp); err != nil {
		return nil, fmt.Errorf("fetch status for %s failed: %w", txHash, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req httpclient.Request, out interface{}) error {
	err := c.http.Do(ctx, req, out)
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &ErrorResponse{StatusCode: se.StatusCode, Body: string(se.Body)}
	}
	return err
}

// ErrorResponse is a 4xx answer from the executor API
type ErrorResponse struct {
	StatusCode int
	Body       string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("executor API error [%d]: %s", e.StatusCode, e.Body)
}

func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ParseEstimatedCost converts the decimal string cost. Empty means the
// executor did not price the request.
func ParseEstimatedCost(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func parseAmount(s, field string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}
