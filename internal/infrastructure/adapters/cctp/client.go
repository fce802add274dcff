package cctp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/httpclient"
)

const defaultTimeout = 30 * time.Second

// Config represents CCTP client configuration
type Config struct {
	BaseURL     string
	Environment string // "sandbox" or "mainnet"
	Timeout     time.Duration
	MaxRetries  int
}

// Client represents a CCTP Iris API client
type Client struct {
	config Config
	http   *httpclient.Client
	logger *zap.Logger
}

// NewClient creates a new CCTP Iris API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.BaseURL == "" {
		if config.Environment == "mainnet" {
			config.BaseURL = IrisMainnetURL
		} else {
			config.BaseURL = IrisSandboxURL
		}
	}

	return &Client{
		config: config,
		http: httpclient.New(httpclient.Config{
			Name:              "CCTPAPI",
			BaseURL:           config.BaseURL,
			Timeout:           config.Timeout,
			MaxRetries:        config.MaxRetries,
			RequestsPerSecond: MaxRequestsPerSecond,
		}, logger),
		logger: logger,
	}
}

// GetMessages fetches the v2 messages emitted by a burn transaction
func (c *Client) GetMessages(ctx context.Context, sourceDomain uint32, txHash string) (*MessagesResponse, error) {
	endpoint := fmt.Sprintf("/v2/messages/%d?transactionHash=%s", sourceDomain, url.QueryEscape(txHash))
	var resp MessagesResponse
	err := c.do(ctx, httpclient.Request{Path: endpoint, Route: "/v2/messages/{domain}"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get messages failed: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, ErrNoMessages
	}
	return &resp, nil
}

// Reattest requests a fresh attestation for a message whose attestation has expired
func (c *Client) Reattest(ctx context.Context, nonce string) (*ReattestResponse, error) {
	endpoint := "/v2/reattest/" + url.PathEscape(nonce)
	var resp ReattestResponse
	err := c.do(ctx, httpclient.Request{Method: http.MethodPost, Path: endpoint, Route: "/v2/reattest/{nonce}"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("reattest failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("reattest failed: %w", &ErrorResponse{StatusCode: http.StatusOK, ErrorText: resp.Error})
	}
	return &resp, nil
}

// GetBurnFees retrieves the minimum fee per finality threshold for a transfer between domains
func (c *Client) GetBurnFees(ctx context.Context, sourceDomain, destDomain uint32) ([]BurnFee, error) {
	endpoint := fmt.Sprintf("/v2/burn/USDC/fees/%d/%d", sourceDomain, destDomain)
	var resp []BurnFee
	err := c.do(ctx, httpclient.Request{Path: endpoint, Route: "/v2/burn/USDC/fees"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get burn fees failed: %w", err)
	}
	return resp, nil
}

// do converts 4xx responses to ErrorResponse.
func (c *Client) do(ctx context.Context, req httpclient.Request, out interface{}) error {
	err := c.http.Do(ctx, req, out)
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		errResp := &ErrorResponse{}
		_ = json.Unmarshal(se.Body, errResp)
		errResp.StatusCode = se.StatusCode
		if errResp.Message == "" && errResp.ErrorText == "" {
			errResp.Message = string(se.Body)
		}
		return errResp
	}
	return err
}
