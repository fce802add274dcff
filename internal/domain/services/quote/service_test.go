package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/executorapi"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

var allPrefixes = []layout.RequestPrefix{layout.RequestPrefixCCTPv1, layout.RequestPrefixCCTPv2}

type fakeAPI struct {
	caps         map[entities.Chain]entities.Capabilities
	quote        string
	cost         string
	quoteErr     error
	instructions []byte
}

func (f *fakeAPI) Capabilities(context.Context) (map[entities.Chain]entities.Capabilities, error) {
	return f.caps, nil
}

func (f *fakeAPI) SignedQuote(_ context.Context, _, _ entities.Chain, ri []byte) (*executorapi.QuoteResponse, error) {
	f.instructions = ri
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &executorapi.QuoteResponse{SignedQuote: f.quote, EstimatedCost: f.cost}, nil
}

type fakeSolana struct {
	exists    bool
	rent      uint64
	rentCalls int
	checked   []string
}

func (f *fakeSolana) AccountExists(_ context.Context, addr string) (bool, error) {
	f.checked = append(f.checked, addr)
	return f.exists, nil
}

func (f *fakeSolana) MinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	f.rentCalls++
	return f.rent, nil
}

type fakeResolver struct{}

func (fakeResolver) TokenAccount(owner string) (string, error) { return "ata-of-" + owner, nil }

func caps(dropOffLimit int64, prefixes ...layout.RequestPrefix) entities.Capabilities {
	return entities.Capabilities{
		RequestPrefixes: prefixes,
		GasDropOffLimit: big.NewInt(dropOffLimit),
		MaxGasLimit:     big.NewInt(5_000_000),
		MaxMsgValue:     big.NewInt(2_000_000_000),
	}
}

var expiry = time.Unix(1_900_000_000, 0).UTC()

func signedQuoteHex(t *testing.T) string {
	t.Helper()
	sq := layout.SignedQuote{Quote: layout.Quote{
		SrcChain:    entities.ChainSepolia.ID(),
		DstChain:    entities.ChainBaseSepolia.ID(),
		ExpiryTime:  expiry,
		BaseFee:     100,
		DstGasPrice: 1,
		SrcPrice:    1,
		DstPrice:    1,
	}}
	raw, err := sq.MarshalBinary()
	require.NoError(t, err)
	return layout.EncodeHex(raw)
}

func newAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{
		caps: map[entities.Chain]entities.Capabilities{
			entities.ChainSepolia:     caps(0, allPrefixes...),
			entities.ChainBaseSepolia: caps(1_000_000_000, allPrefixes...),
			entities.ChainSolana:      caps(1_000_000_000, allPrefixes...),
			entities.ChainAvalanche:   caps(0, layout.RequestPrefixCCTPv1),
		},
		quote: signedQuoteHex(t),
		cost:  "123456",
	}
}

func testConfig() Config {
	return Config{
		Network:         entities.NetworkTestnet,
		GasLimits:       entities.DefaultGasLimits[entities.NetworkTestnet],
		Referrers:       entities.DefaultReferrers[entities.NetworkTestnet],
		ReferrerFeeDbps: entities.DefaultReferrerFeeDbps,
	}
}

func TestQuoteEVMToEVM(t *testing.T) {
	api := newAPI(t)
	svc := NewService(testConfig(), api, nil, nil, zap.NewNop())

	recipient := entities.ChainAddress{Chain: entities.ChainBaseSepolia, Address: "0x2222222222222222222222222222222222222222"}
	details, err := svc.Quote(context.Background(), entities.TransferRequest{
		Protocol:    entities.ProtocolCCTPv1,
		Source:      entities.ChainSepolia,
		Destination: entities.ChainBaseSepolia,
		Amount:      big.NewInt(1_000_000),
		NativeGas:   0.5,
		Recipient:   &recipient,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(123456), details.EstimatedCost.Int64())
	assert.Equal(t, int64(100), details.ReferrerFee.Int64())
	assert.Equal(t, int64(999_900), details.RemainingAmount.Int64())
	assert.Equal(t, uint16(10), details.ReferrerFeeDbps)
	assert.Equal(t, expiry, details.ExpiryTime)
	assert.Equal(t, int64(500_000_000), details.GasDropOff.Int64())
	assert.Equal(t, entities.ChainSepolia, details.Referrer.Chain)

	ri, err := layout.DecodeRelayInstructions(details.RelayInstructions)
	require.NoError(t, err)
	require.Len(t, ri, 2)
	gas := ri[0].(layout.GasInstruction)
	assert.Equal(t, int64(200_000), gas.GasLimit.Int64())
	assert.Zero(t, gas.MsgValue.Sign())
	drop := ri[1].(layout.GasDropOffInstruction)
	want, _ := recipient.Universal()
	assert.Equal(t, want, drop.Recipient)
	assert.Equal(t, api.instructions, []byte(details.RelayInstructions))
}

func TestQuoteSolanaMissingAccount(t *testing.T) {
	api := newAPI(t)
	rpc := &fakeSolana{exists: false, rent: 2_039_280}
	svc := NewService(testConfig(), api, rpc, fakeResolver{}, zap.NewNop())

	recipient := entities.ChainAddress{Chain: entities.ChainSolana, Address: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"}
	req := entities.TransferRequest{
		Protocol:    entities.ProtocolCCTPv2,
		Source:      entities.ChainSepolia,
		Destination: entities.ChainSolana,
		Amount:      big.NewInt(5_000_000),
		Recipient:   &recipient,
	}

	for i := 0; i < 2; i++ {
		details, err := svc.Quote(context.Background(), req)
		require.NoError(t, err)

		ri, err := layout.DecodeRelayInstructions(details.RelayInstructions)
		require.NoError(t, err)
		require.Len(t, ri, 2, "missing account forces a drop-off instruction")
		gas := ri[0].(layout.GasInstruction)
		assert.Equal(t, int64(250_000), gas.GasLimit.Int64())
		assert.Equal(t, int64(15_000+2_039_280), gas.MsgValue.Int64())
		assert.Zero(t, ri[1].(layout.GasDropOffInstruction).DropOff.Sign())
	}
	assert.Equal(t, 1, rpc.rentCalls)
	assert.Equal(t, []string{"ata-of-" + recipient.Address, "ata-of-" + recipient.Address}, rpc.checked)
}

func TestQuoteSolanaExistingOrUnknownRecipient(t *testing.T) {
	ctx := context.Background()
	req := entities.TransferRequest{
		Protocol:    entities.ProtocolCCTPv2,
		Source:      entities.ChainSepolia,
		Destination: entities.ChainSolana,
		Amount:      big.NewInt(5_000_000),
	}

	rpc := &fakeSolana{exists: true}
	svc := NewService(testConfig(), newAPI(t), rpc, fakeResolver{}, zap.NewNop())

	details, err := svc.Quote(ctx, req)
	require.NoError(t, err)
	ri, err := layout.DecodeRelayInstructions(details.RelayInstructions)
	require.NoError(t, err)
	require.Len(t, ri, 1)
	assert.Equal(t, int64(15_000), ri[0].(layout.GasInstruction).MsgValue.Int64())
	assert.Empty(t, rpc.checked)

	recipient := entities.ChainAddress{Chain: entities.ChainSolana, Address: "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"}
	req.Recipient = &recipient
	details, err = svc.Quote(ctx, req)
	require.NoError(t, err)
	ri, err = layout.DecodeRelayInstructions(details.RelayInstructions)
	require.NoError(t, err)
	require.Len(t, ri, 1)
	assert.Zero(t, rpc.rentCalls)
}

func TestQuoteErrors(t *testing.T) {
	ctx := context.Background()
	base := entities.TransferRequest{
		Protocol:    entities.ProtocolCCTPv1,
		Source:      entities.ChainSepolia,
		Destination: entities.ChainBaseSepolia,
		Amount:      big.NewInt(1_000_000),
	}

	tests := []struct {
		name   string
		mutate func(*entities.TransferRequest, *fakeAPI, *Config)
		want   error
	}{
		{
			name:   "unsupported destination capability",
			mutate: func(r *entities.TransferRequest, _ *fakeAPI, _ *Config) { r.Protocol = entities.ProtocolCCTPv2; r.Destination = entities.ChainAvalanche },
			want:   domainerrors.ErrCapability,
		},
		{
			name:   "missing gas limit",
			mutate: func(r *entities.TransferRequest, _ *fakeAPI, _ *Config) { r.Destination = entities.ChainArbitrumSepolia },
			want:   domainerrors.ErrConfiguration,
		},
		{
			name:   "missing referrer",
			mutate: func(r *entities.TransferRequest, _ *fakeAPI, _ *Config) { r.Source = entities.ChainSolana },
			want:   domainerrors.ErrConfiguration,
		},
		{
			name:   "unknown chain",
			mutate: func(r *entities.TransferRequest, _ *fakeAPI, _ *Config) { r.Destination = entities.ChainEthereum },
			want:   domainerrors.ErrConfiguration,
		},
		{
			name:   "native gas out of range",
			mutate: func(r *entities.TransferRequest, _ *fakeAPI, _ *Config) { r.NativeGas = 1.5 },
			want:   domainerrors.ErrValidation,
		},
		{
			name:   "zero amount",
			mutate: func(r *entities.TransferRequest, _ *fakeAPI, _ *Config) { r.Amount = big.NewInt(0) },
			want:   domainerrors.ErrValidation,
		},
		{
			name:   "no estimated cost",
			mutate: func(_ *entities.TransferRequest, a *fakeAPI, _ *Config) { a.cost = "" },
			want:   domainerrors.ErrQuote,
		},
		{
			name:   "quote endpoint failure",
			mutate: func(_ *entities.TransferRequest, a *fakeAPI, _ *Config) { a.quoteErr = errors.New("503") },
			want:   domainerrors.ErrQuote,
		},
		{
			name:   "malformed signed quote",
			mutate: func(_ *entities.TransferRequest, a *fakeAPI, _ *Config) { a.quote = "0x4551" },
			want:   domainerrors.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			api := newAPI(t)
			cfg := testConfig()
			tt.mutate(&req, api, &cfg)

			_, err := NewService(cfg, api, nil, nil, zap.NewNop()).Quote(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
