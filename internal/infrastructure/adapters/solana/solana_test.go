package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

type rpcHandler func(method string, params []json.RawMessage) (interface{}, *RPCError)

func newRPCServer(t *testing.T, handle rpcHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient(t *testing.T) {
	server := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *RPCError) {
		switch method {
		case "getSlot":
			return 345_000_000, nil
		case "getMinimumBalanceForRentExemption":
			var size uint64
			require.NoError(t, json.Unmarshal(params[0], &size))
			assert.Equal(t, uint64(entities.SolanaTokenAccountSize), size)
			return 2_039_280, nil
		case "getAccountInfo":
			var addr string
			require.NoError(t, json.Unmarshal(params[0], &addr))
			if addr == "missing" {
				return map[string]interface{}{"context": map[string]int{"slot": 1}, "value": nil}, nil
			}
			if addr == "broken" {
				return nil, &RPCError{Code: -32602, Message: "Invalid param"}
			}
			return map[string]interface{}{
				"context": map[string]int{"slot": 1},
				"value":   map[string]interface{}{"lamports": 1, "owner": TokenProgramID.String()},
			}, nil
		}
		return nil, &RPCError{Code: -32601, Message: "Method not found"}
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	ctx := context.Background()

	slot, err := client.GetSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(345_000_000), slot)

	rent, err := client.MinimumBalanceForRentExemption(ctx, entities.SolanaTokenAccountSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_039_280), rent)

	exists, err := client.AccountExists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.AccountExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.AccountExists(ctx, "broken")
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestProgramAddress(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	assert.True(t, IsOnCurve(pub))

	var owner PublicKey
	copy(owner[:], pub)
	mint := MustPublicKey("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")

	ata, err := AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(ata[:]))

	again, err := AssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, ata, again)

	seeds := [][]byte{owner[:], TokenProgramID[:], mint[:]}
	found, bump, err := FindProgramAddress(seeds, AssociatedTokenAccountProgramID)
	require.NoError(t, err)
	assert.Equal(t, ata, found)

	created, err := CreateProgramAddress(append(seeds, []byte{bump}), AssociatedTokenAccountProgramID)
	require.NoError(t, err)
	assert.Equal(t, found, created)

	_, err = CreateProgramAddress([][]byte{make([]byte, 33)}, AssociatedTokenAccountProgramID)
	assert.Error(t, err)

	_, err = ParsePublicKey("not-base58-0OIl")
	assert.Error(t, err)
}

func TestExecutor(t *testing.T) {
	var queried string
	server := newRPCServer(t, func(method string, params []json.RawMessage) (interface{}, *RPCError) {
		switch method {
		case "getSlot":
			return 99, nil
		case "getAccountInfo":
			require.NoError(t, json.Unmarshal(params[0], &queried))
			return map[string]interface{}{"value": map[string]int{"lamports": 1}}, nil
		}
		return nil, &RPCError{Code: -32601, Message: "Method not found"}
	})
	defer server.Close()

	ex, err := NewExecutor(ExecutorConfig{Network: entities.NetworkTestnet}, NewClient(Config{RPCURL: server.URL}, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, entities.ChainSolana, ex.Chain())

	ctx := context.Background()
	block, err := ex.GetCurrentBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), block)

	msg := &layout.CircleV2Message{SourceDomain: 6}
	msg.Nonce[0] = 0xaa
	done, err := ex.IsTransferCompleted(ctx, msg)
	require.NoError(t, err)
	assert.True(t, done)

	expected, err := ex.UsedNoncesAddress(msg)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), queried)

	// Only the first eight nonce bytes are part of the seed.
	other := *msg
	other.Nonce[31] = 0xff
	same, err := ex.UsedNoncesAddress(&other)
	require.NoError(t, err)
	assert.Equal(t, expected, same)

	_, err = ex.Transfer(ctx, "sender", entities.ChainAddress{}, &entities.QuoteDetails{})
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedOperation)
	_, err = ex.Redeem(ctx, "sender", msg, nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedOperation)
}

func TestExecutorRPCFailureReadsIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ex, err := NewExecutor(ExecutorConfig{Network: entities.NetworkTestnet}, NewClient(Config{RPCURL: server.URL}, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	done, err := ex.IsTransferCompleted(context.Background(), &layout.CircleV2Message{})
	require.NoError(t, err)
	assert.False(t, done)
}

func TestNewExecutorRejectsBadProgram(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{Network: entities.NetworkTestnet, MessageTransmitterV2: "0x00"}, nil, zap.NewNop())
	assert.ErrorIs(t, err, domainerrors.ErrConfiguration)
}
