package executorapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

func TestNewClient(t *testing.T) {
	client := NewClient(Config{Network: entities.NetworkTestnet}, zap.NewNop())
	assert.Equal(t, entities.ExecutorAPITestnetURL, client.config.BaseURL)

	client = NewClient(Config{BaseURL: "http://localhost:9999"}, zap.NewNop())
	assert.Equal(t, "http://localhost:9999", client.config.BaseURL)
}

func TestCapabilities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/capabilities", r.URL.Path)
		w.Write([]byte(`{
			"1": {"requestPrefixes":["ERV1","ERC1","ERC2"],"gasDropOffLimit":"1000000000","maxGasLimit":"1400000","maxMsgValue":"2000000000"},
			"10002": {"requestPrefixes":["ERC1"],"gasDropOffLimit":"0","maxGasLimit":"5000000","maxMsgValue":"0"},
			"65000": {"requestPrefixes":["ERV1"],"gasDropOffLimit":"0","maxGasLimit":"0","maxMsgValue":"0"}
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	caps, err := client.Capabilities(context.Background())
	require.NoError(t, err)
	require.Len(t, caps, 2)

	solana := caps[entities.ChainSolana]
	assert.True(t, solana.Supports(layout.RequestPrefixCCTPv2))
	assert.Equal(t, int64(1_000_000_000), solana.GasDropOffLimit.Int64())
	assert.Equal(t, int64(1_400_000), solana.MaxGasLimit.Int64())

	sepolia := caps[entities.ChainSepolia]
	assert.True(t, sepolia.Supports(layout.RequestPrefixCCTPv1))
	assert.False(t, sepolia.Supports(layout.RequestPrefixCCTPv2))
}

func TestSignedQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req QuoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint16(10002), req.SrcChain)
		assert.Equal(t, uint16(1), req.DstChain)
		assert.Equal(t, "0x0102", req.RelayInstructions)
		json.NewEncoder(w).Encode(QuoteResponse{SignedQuote: "0xabcd", EstimatedCost: "42"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	resp, err := client.SignedQuote(context.Background(), entities.ChainSepolia, entities.ChainSolana, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "0xabcd", resp.SignedQuote)

	cost, ok := ParseEstimatedCost(resp.EstimatedCost)
	require.True(t, ok)
	assert.Equal(t, int64(42), cost.Int64())

	_, ok = ParseEstimatedCost("")
	assert.False(t, ok)
}

func TestStatus(t *testing.T) {
	t.Run("returns relays", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v0/status/tx", r.URL.Path)
			var req StatusRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "0xfeed", req.TxHash)
			assert.Equal(t, uint16(10004), req.ChainID)
			w.Write([]byte(`[{"id":"0x01","txHash":"0xfeed","chainId":10004,"status":"submitted","estimatedCost":"1",
				"requestForExecution":{"requestBytes":"0x45524331000000060000000000000001"},"indexed_at":"2025-01-01T00:00:00Z"}]`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
		statuses, err := client.Status(context.Background(), "0xfeed", entities.ChainBaseSepolia)
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, "submitted", statuses[0].Status)
		assert.Equal(t, "0x45524331000000060000000000000001", statuses[0].RequestForExecution.RequestBytes)
	})

	t.Run("client error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`bad chain`))
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
		_, err := client.Status(context.Background(), "0xfeed", entities.ChainBaseSepolia)
		var errResp *ErrorResponse
		require.True(t, errors.As(err, &errResp))
		assert.Equal(t, http.StatusBadRequest, errResp.StatusCode)
	})
}
