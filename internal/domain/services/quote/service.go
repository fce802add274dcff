// Package quote assembles relay instructions, fetches a signed quote from
// the executor and applies the referrer fee.
package quote

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/executor"
	"github.com/rail-service/cctp_executor/internal/domain/services/fees"
	"github.com/rail-service/cctp_executor/internal/domain/services/instructions"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/executorapi"
	"github.com/rail-service/cctp_executor/pkg/layout"
	"github.com/rail-service/cctp_executor/pkg/metrics"
	"github.com/rail-service/cctp_executor/pkg/tracing"
)

const tracerName = "cctp_executor/quote"

// ExecutorAPI is the part of the executor API quoting needs.
type ExecutorAPI interface {
	Capabilities(ctx context.Context) (map[entities.Chain]entities.Capabilities, error)
	SignedQuote(ctx context.Context, src, dst entities.Chain, relayInstructions []byte) (*executorapi.QuoteResponse, error)
}

// SolanaAccountRPC answers the account questions the Solana surcharge needs.
type SolanaAccountRPC interface {
	AccountExists(ctx context.Context, address string) (bool, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// Config holds the static quoting tables
type Config struct {
	Network entities.Network
	// GasLimits is the fixed destination gas limit per chain.
	GasLimits map[entities.Chain]uint64
	// Referrers receives the referrer fee, keyed by source chain.
	Referrers       map[entities.Chain]string
	ReferrerFeeDbps uint16
	// FeeThreshold caps the amount the referrer fee is charged on, in whole
	// USDC. Nil disables the cap.
	FeeThreshold *big.Int
	// SolanaMsgValueBaseFee defaults to entities.SolanaMsgValueBaseFee.
	SolanaMsgValueBaseFee uint64
}

// Service produces QuoteDetails. Its only mutable state is the rent
// exemption cache, written at most once.
type Service struct {
	config        Config
	api           ExecutorAPI
	solanaRPC     SolanaAccountRPC
	tokenAccounts executor.TokenAccountResolver
	logger        *zap.Logger

	// ataRent is zero until first fetched. Concurrent first fetches race
	// benignly since the value is the same.
	ataRent atomic.Uint64
}

// NewService creates a quote service. solanaRPC and tokenAccounts may be nil
// when Solana is not a destination.
func NewService(config Config, api ExecutorAPI, solanaRPC SolanaAccountRPC, tokenAccounts executor.TokenAccountResolver, logger *zap.Logger) *Service {
	if config.SolanaMsgValueBaseFee == 0 {
		config.SolanaMsgValueBaseFee = entities.SolanaMsgValueBaseFee
	}
	return &Service{
		config:        config,
		api:           api,
		solanaRPC:     solanaRPC,
		tokenAccounts: tokenAccounts,
		logger:        logger,
	}
}

// Quote prices req. Nothing external is mutated on failure.
func (s *Service) Quote(ctx context.Context, req entities.TransferRequest) (details *entities.QuoteDetails, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "QuoteService.Quote",
		attribute.String("protocol", string(req.Protocol)),
		attribute.String("source", string(req.Source)),
		attribute.String("destination", string(req.Destination)))
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.QuotesTotal.WithLabelValues(string(req.Protocol), result).Inc()
		tracing.EndSpan(span, err)
	}()

	if _, ok := entities.USDCContract(s.config.Network, req.Source); !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("Unsupported chain: no USDC contract on %s", req.Source))
	}
	if _, ok := entities.USDCContract(s.config.Network, req.Destination); !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("Unsupported chain: no USDC contract on %s", req.Destination))
	}
	referrerAddr, ok := s.config.Referrers[req.Source]
	if !ok || referrerAddr == "" {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("No referrer address found for %s", req.Source))
	}
	if err := instructions.ValidateNativeGas(req.NativeGas); err != nil {
		return nil, err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, domainerrors.ValidationError("amount", "amount must be positive")
	}

	fee, err := fees.CalculateReferrerFee(req.Amount, int64(s.config.ReferrerFeeDbps), s.config.FeeThreshold)
	if err != nil {
		return nil, err
	}
	if fee.Remaining.Sign() <= 0 {
		return nil, domainerrors.ValidationError("amount", "Amount after fee <= 0")
	}

	gasLimit, ok := s.config.GasLimits[req.Destination]
	if !ok || gasLimit == 0 {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("Gas limit not found for %s", req.Destination))
	}

	dstCaps, err := s.checkCapabilities(ctx, req)
	if err != nil {
		return nil, err
	}

	msgValue, accountMissing, err := s.solanaSurcharge(ctx, req)
	if err != nil {
		return nil, err
	}

	dropOff, err := instructions.DropOff(req.NativeGas, dstCaps.GasDropOffLimit)
	if err != nil {
		return nil, err
	}

	var recipient layout.UniversalAddress
	if req.Recipient != nil {
		if recipient, err = req.Recipient.Universal(); err != nil {
			return nil, domainerrors.ValidationError("recipient", err.Error())
		}
	}

	relayInstructions, err := instructions.Encode(instructions.Params{
		GasLimit:       new(big.Int).SetUint64(gasLimit),
		MsgValue:       msgValue,
		DropOff:        dropOff,
		Recipient:      recipient,
		AccountMissing: accountMissing,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.api.SignedQuote(ctx, req.Source, req.Destination, relayInstructions)
	if err != nil {
		return nil, domainerrors.QuoteError("Failed to fetch signed quote", err)
	}
	estimatedCost, ok := executorapi.ParseEstimatedCost(resp.EstimatedCost)
	if !ok {
		return nil, domainerrors.QuoteError("No estimated cost", nil)
	}

	signedQuoteBytes, err := layout.DecodeHex(resp.SignedQuote)
	if err != nil {
		return nil, domainerrors.DecodeError("signed quote", err)
	}
	signedQuote, err := layout.DecodeSignedQuote(signedQuoteBytes)
	if err != nil {
		return nil, domainerrors.DecodeError("signed quote", err)
	}

	s.logger.Debug("Fetched signed quote",
		zap.String("source", string(req.Source)),
		zap.String("destination", string(req.Destination)),
		zap.String("estimated_cost", estimatedCost.String()),
		zap.Time("expires", signedQuote.Quote.ExpiryTime))

	return &entities.QuoteDetails{
		SignedQuote:       signedQuoteBytes,
		RelayInstructions: relayInstructions,
		EstimatedCost:     estimatedCost,
		Referrer: entities.ChainAddress{
			Chain:   req.Source,
			Address: referrerAddr,
		},
		ReferrerFee:              fee.Fee,
		RemainingAmount:          fee.Remaining,
		ReferrerFeeDbps:          s.config.ReferrerFeeDbps,
		EffectiveReferrerFeeDbps: fee.EffectiveDbps,
		ExpiryTime:               signedQuote.Quote.ExpiryTime,
		GasDropOff:               dropOff,
	}, nil
}

// checkCapabilities requires the protocol's request prefix on both ends and
// returns the destination's limits.
func (s *Service) checkCapabilities(ctx context.Context, req entities.TransferRequest) (entities.Capabilities, error) {
	all, err := s.api.Capabilities(ctx)
	if err != nil {
		return entities.Capabilities{}, domainerrors.QuoteError("Failed to fetch capabilities", err)
	}
	prefix := req.Protocol.RequestPrefix()
	src, ok := all[req.Source]
	if !ok || !src.Supports(prefix) {
		return entities.Capabilities{}, domainerrors.CapabilityError(string(req.Source), string(prefix))
	}
	dst, ok := all[req.Destination]
	if !ok || !dst.Supports(prefix) {
		return entities.Capabilities{}, domainerrors.CapabilityError(string(req.Destination), string(prefix))
	}
	return dst, nil
}

// solanaSurcharge returns the msgValue a Solana destination needs and
// whether the recipient's token account has to be created. The existence
// check is a point-in-time read; the account may change before the relay.
func (s *Service) solanaSurcharge(ctx context.Context, req entities.TransferRequest) (*big.Int, bool, error) {
	msgValue := new(big.Int)
	if req.Destination != entities.ChainSolana {
		return msgValue, false, nil
	}
	msgValue.SetUint64(s.config.SolanaMsgValueBaseFee)
	if req.Recipient == nil {
		return msgValue, false, nil
	}
	if s.solanaRPC == nil || s.tokenAccounts == nil {
		return nil, false, domainerrors.ConfigurationError("Solana RPC is not configured")
	}

	ata, err := s.tokenAccounts.TokenAccount(req.Recipient.Address)
	if err != nil {
		return nil, false, err
	}
	exists, err := s.solanaRPC.AccountExists(ctx, ata)
	if err != nil {
		return nil, false, domainerrors.QuoteError("Failed to check recipient token account", err)
	}
	if exists {
		return msgValue, false, nil
	}

	rent, err := s.rentExemption(ctx)
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("Recipient token account missing, adding rent",
		zap.String("token_account", ata),
		zap.Uint64("rent", rent))
	return msgValue.Add(msgValue, new(big.Int).SetUint64(rent)), true, nil
}

func (s *Service) rentExemption(ctx context.Context) (uint64, error) {
	if rent := s.ataRent.Load(); rent != 0 {
		return rent, nil
	}
	rent, err := s.solanaRPC.MinimumBalanceForRentExemption(ctx, entities.SolanaTokenAccountSize)
	if err != nil {
		return 0, domainerrors.QuoteError("Failed to fetch rent exemption", err)
	}
	s.ataRent.CompareAndSwap(0, rent)
	return rent, nil
}
