// Package route ties quoting, the source transfer, tracking and manual
// completion together for one CCTP flavour.
package route

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/estimator"
	"github.com/rail-service/cctp_executor/internal/domain/services/fees"
	"github.com/rail-service/cctp_executor/internal/domain/services/instructions"
	"github.com/rail-service/cctp_executor/internal/domain/services/tracker"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_executor/pkg/layout"
	"github.com/rail-service/cctp_executor/pkg/retry"
	"github.com/rail-service/cctp_executor/pkg/tracing"
)

const tracerName = "cctp_executor/route"

// Kind names a route.
type Kind string

const (
	KindCCTPv1         Kind = "cctp_v1"
	KindCCTPv2Standard Kind = "cctp_v2_standard"
	KindCCTPv2Fast     Kind = "cctp_v2_fast"
)

// Kinds lists every route in display order.
var Kinds = []Kind{KindCCTPv1, KindCCTPv2Standard, KindCCTPv2Fast}

// ParseKind validates a route name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", domainerrors.ValidationError("route", fmt.Sprintf("unknown route %q", s))
}

// Protocol is the CCTP generation the route burns with.
func (k Kind) Protocol() entities.Protocol {
	if k == KindCCTPv1 {
		return entities.ProtocolCCTPv1
	}
	return entities.ProtocolCCTPv2
}

// Fast reports whether the route pays Circle for a CONFIRMED attestation.
func (k Kind) Fast() bool { return k == KindCCTPv2Fast }

// Quoter prices a transfer request.
type Quoter interface {
	Quote(ctx context.Context, req entities.TransferRequest) (*entities.QuoteDetails, error)
}

// BurnFeeSource returns Circle's fast-transfer fees.
type BurnFeeSource interface {
	GetBurnFees(ctx context.Context, sourceDomain, destDomain uint32) ([]cctp.BurnFee, error)
}

// AttestationService fetches and refreshes Circle attestations.
type AttestationService interface {
	Fetch(ctx context.Context, tx entities.TransactionID) (*entities.Attestation, error)
	Refresh(ctx context.Context, tx entities.TransactionID, message *layout.CircleV2Message, currentBlock uint64) (*entities.Attestation, error)
}

// Tracker advances receipts.
type Tracker interface {
	Poll(ctx context.Context, receipt entities.TransferReceipt) (entities.TransferReceipt, tracker.Event, error)
	Track(ctx context.Context, receipt entities.TransferReceipt, timeout time.Duration, updates chan<- entities.TransferReceipt) (entities.TransferReceipt, error)
}

// Dependencies are the collaborators shared by every route.
type Dependencies struct {
	Quotes       Quoter
	BurnFees     BurnFeeSource
	Attestations AttestationService
	Tracker      Tracker
	Executors    tracker.ExecutorLookup
	Status       tracker.StatusAPI
}

// Config tunes a route
type Config struct {
	Network         entities.Network
	ReferrerFeeDbps uint16
	// EstimatorToleranceBps is how far the executor's estimated cost may
	// drift from the local estimate before a warning is logged. Zero skips
	// the comparison.
	EstimatorToleranceBps int64
	TrackTimeout          time.Duration
	StatusPingPolicy      retry.Policy
	StatusPingTimeout     time.Duration
}

// DefaultStatusPingPolicy asks the executor to index a fresh transfer every
// two seconds, twenty times.
var DefaultStatusPingPolicy = retry.ConstantPolicy(2*time.Second, 19)

const defaultStatusPingTimeout = time.Minute

// Route is safe for concurrent use.
type Route struct {
	kind   Kind
	config Config
	deps   Dependencies
	now    func() time.Time
	logger *zap.Logger

	pingers sync.WaitGroup
}

// New creates the route for kind. Every dependency is required.
func New(kind Kind, config Config, deps Dependencies, logger *zap.Logger) (*Route, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if deps.Quotes == nil || deps.Attestations == nil || deps.Tracker == nil || deps.Executors == nil || deps.Status == nil {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("route %s is missing a dependency", kind))
	}
	if kind.Fast() && deps.BurnFees == nil {
		return nil, domainerrors.ConfigurationError("fast route needs a burn fee source")
	}
	if config.TrackTimeout <= 0 {
		config.TrackTimeout = tracker.DefaultTrackTimeout
	}
	if config.StatusPingPolicy == (retry.Policy{}) {
		config.StatusPingPolicy = DefaultStatusPingPolicy
	}
	if config.StatusPingTimeout <= 0 {
		config.StatusPingTimeout = defaultStatusPingTimeout
	}
	return &Route{
		kind:   kind,
		config: config,
		deps:   deps,
		now:    time.Now,
		logger: logger.With(zap.String("route", string(kind))),
	}, nil
}

func (r *Route) Kind() Kind { return r.kind }

// Validate checks a request before anything is fetched.
func (r *Route) Validate(req entities.TransferRequest) error {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return domainerrors.ValidationError("amount", "amount must be positive")
	}
	if err := instructions.ValidateNativeGas(req.NativeGas); err != nil {
		return err
	}
	if err := fees.ValidateDbps(int64(r.config.ReferrerFeeDbps)); err != nil {
		return err
	}
	if req.Source == req.Destination {
		return domainerrors.ValidationError("destination", "source and destination must differ")
	}
	for _, c := range []entities.Chain{req.Source, req.Destination} {
		if _, ok := entities.USDCContract(r.config.Network, c); !ok {
			return domainerrors.ValidationError("chain", fmt.Sprintf("%s is not supported on %s", c, r.config.Network))
		}
		if !r.supportsPlatform(c) {
			return domainerrors.ValidationError("chain", fmt.Sprintf("%s does not support %s", r.kind, c))
		}
	}
	if req.Recipient != nil && req.Recipient.Chain != req.Destination {
		return domainerrors.ValidationError("recipient", "recipient must be on the destination chain")
	}
	return nil
}

func (r *Route) supportsPlatform(c entities.Chain) bool {
	if r.kind.Protocol() != entities.ProtocolCCTPv1 {
		return true
	}
	switch c.Platform() {
	case entities.PlatformSui, entities.PlatformAptos:
		return false
	}
	return true
}

// Quote prices req for display and for Initiate.
func (r *Route) Quote(ctx context.Context, req entities.TransferRequest) (result *entities.QuoteResult, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Route.Quote",
		attribute.String("route", string(r.kind)),
		attribute.String("source", string(req.Source)),
		attribute.String("destination", string(req.Destination)))
	defer func() { tracing.EndSpan(span, err) }()

	req.Protocol = r.kind.Protocol()
	if err := r.Validate(req); err != nil {
		return nil, err
	}

	details, err := r.deps.Quotes.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	if details.EstimatedCost == nil {
		return nil, domainerrors.QuoteError("No estimated cost", nil)
	}

	maxFee := new(big.Int)
	if req.Protocol == entities.ProtocolCCTPv2 {
		details.MinFinalityThreshold = entities.FinalityThresholdFinalized
		if r.kind.Fast() {
			if maxFee, err = r.fastTransferMaxFee(ctx, req, details.RemainingAmount); err != nil {
				return nil, err
			}
			details.MinFinalityThreshold = entities.FinalityThresholdConfirmed
		}
		details.FastTransferMaxFee = maxFee
	}

	received := new(big.Int).Sub(details.RemainingAmount, maxFee)
	if received.Sign() <= 0 {
		return nil, domainerrors.ValidationError("amount", "Amount after fast transfer fee <= 0")
	}

	srcInfo, _ := req.Source.Info()
	dstInfo, _ := req.Destination.Info()

	result = &entities.QuoteResult{
		Route:       string(r.kind),
		SourceToken: entities.NewTokenAmount("USDC", req.Amount, entities.USDCDecimals),
		DestToken:   entities.NewTokenAmount("USDC", received, entities.USDCDecimals),
		RelayFee:    entities.NewTokenAmount(req.Source.NativeSymbol(), details.EstimatedCost, srcInfo.NativeDecimals),
		ReferrerFee: entities.NewTokenAmount("USDC", details.ReferrerFee, entities.USDCDecimals),
		ETA:         entities.EstimateTransferTime(req.Source, r.kind.Fast()),
		Expires:     details.ExpiryTime,
		Details:     *details,
	}
	if details.GasDropOff != nil && details.GasDropOff.Sign() > 0 {
		nativeGas := entities.NewTokenAmount(req.Destination.NativeSymbol(), details.GasDropOff, dstInfo.NativeDecimals)
		result.NativeGas = &nativeGas
	}
	result.ClientEstimate = r.crossCheck(details, srcInfo, dstInfo)
	return result, nil
}

// fastTransferMaxFee is Circle's CONFIRMED-threshold fee on amount, rounded up.
func (r *Route) fastTransferMaxFee(ctx context.Context, req entities.TransferRequest, amount *big.Int) (*big.Int, error) {
	srcDomain, ok := entities.CircleDomain(r.config.Network, req.Source)
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no Circle domain for %s", req.Source))
	}
	dstDomain, ok := entities.CircleDomain(r.config.Network, req.Destination)
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no Circle domain for %s", req.Destination))
	}

	burnFees, err := r.deps.BurnFees.GetBurnFees(ctx, srcDomain, dstDomain)
	if err != nil {
		return nil, domainerrors.QuoteError("Failed to fetch fast transfer fee", err)
	}
	for _, f := range burnFees {
		if f.FinalityThreshold == entities.FinalityThresholdConfirmed {
			return FastTransferMaxFee(amount, f.MinimumFee), nil
		}
	}
	return nil, domainerrors.QuoteError("No fast transfer fee for CONFIRMED finality", nil)
}

// FastTransferMaxFee returns ceil(amount * bps / 10000).
func FastTransferMaxFee(amount *big.Int, bps decimal.Decimal) *big.Int {
	fee := decimal.NewFromBigInt(amount, 0).Mul(bps).Shift(-4).Ceil()
	return fee.BigInt()
}

// crossCheck recomputes the relay cost from the signed quote and logs when
// it drifts from the executor's number.
func (r *Route) crossCheck(details *entities.QuoteDetails, src, dst entities.ChainInfo) *big.Int {
	sq, err := layout.DecodeSignedQuote(details.SignedQuote)
	if err != nil {
		r.logger.Warn("Cannot decode signed quote for estimate", zap.Error(err))
		return nil
	}
	ri, err := layout.DecodeRelayInstructions(details.RelayInstructions)
	if err != nil {
		r.logger.Warn("Cannot decode relay instructions for estimate", zap.Error(err))
		return nil
	}
	gasLimit, msgValue := ri.TotalGasLimitAndMsgValue()
	estimate := estimator.EstimateQuote(sq.Quote, estimator.Params{
		GasLimit:            gasLimit,
		MsgValue:            msgValue,
		DstGasPriceDecimals: dst.GasPriceDecimals,
		SrcTokenDecimals:    src.NativeDecimals,
		DstNativeDecimals:   dst.NativeDecimals,
	})

	if r.config.EstimatorToleranceBps > 0 && details.EstimatedCost.Sign() > 0 {
		diff := new(big.Int).Sub(estimate, details.EstimatedCost)
		diff.Abs(diff).Mul(diff, big.NewInt(10_000)).Quo(diff, details.EstimatedCost)
		if diff.Cmp(big.NewInt(r.config.EstimatorToleranceBps)) > 0 {
			r.logger.Warn("Executor estimate differs from local estimate",
				zap.String("executor", details.EstimatedCost.String()),
				zap.String("local", estimate.String()),
				zap.String("diff_bps", diff.String()))
		}
	}
	return estimate
}

// Wait blocks until background status pings finish or ctx ends.
func (r *Route) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pingers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errNotIndexed = errors.New("transfer not indexed yet")
