package route

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/executor"
	"github.com/rail-service/cctp_executor/internal/domain/services/instructions"
	"github.com/rail-service/cctp_executor/pkg/retry"
	"github.com/rail-service/cctp_executor/pkg/tracing"
)

// Initiate builds, signs and broadcasts the source transfer for quote.
func (r *Route) Initiate(ctx context.Context, req entities.TransferRequest, signer executor.Signer, quote *entities.QuoteResult, recipient entities.ChainAddress) (receipt entities.TransferReceipt, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Route.Initiate",
		attribute.String("route", string(r.kind)),
		attribute.String("source", string(req.Source)),
		attribute.String("destination", string(req.Destination)))
	defer func() { tracing.EndSpan(span, err) }()

	if quote == nil {
		return receipt, domainerrors.ValidationError("quote", "quote is required")
	}
	if recipient.Chain != req.Destination {
		return receipt, domainerrors.ValidationError("recipient", "recipient must be on the destination chain")
	}
	if signer.Chain() != req.Source {
		return receipt, domainerrors.ValidationError("signer", fmt.Sprintf("signer is on %s, transfer starts on %s", signer.Chain(), req.Source))
	}
	if !quote.Expires.IsZero() && r.now().After(quote.Expires) {
		return receipt, domainerrors.QuoteError("Quote expired", nil)
	}

	universal, err := recipient.Universal()
	if err != nil {
		return receipt, domainerrors.ValidationError("recipient", err.Error())
	}
	details := quote.Details
	if err := instructions.VerifyRecipient(details.RelayInstructions, universal); err != nil {
		return receipt, err
	}

	ex, err := r.deps.Executors.Get(r.kind.Protocol(), req.Source)
	if err != nil {
		return receipt, err
	}
	txs, err := ex.Transfer(ctx, signer.Address(), recipient, &details)
	if err != nil {
		return receipt, fmt.Errorf("build transfer: %w", err)
	}
	ids, err := signer.SignAndSend(ctx, txs)
	if err != nil {
		return receipt, fmt.Errorf("send transfer: %w", err)
	}
	if len(ids) == 0 {
		return receipt, fmt.Errorf("send transfer: signer returned no transactions")
	}

	receipt = entities.TransferReceipt{
		Protocol:  r.kind.Protocol(),
		From:      req.Source,
		To:        req.Destination,
		State:     entities.TransferStateSourceInitiated,
		OriginTxs: ids,
		UpdatedAt: r.now().UTC(),
	}
	r.logger.Info("Transfer initiated",
		zap.String("origin_tx", ids[len(ids)-1].String()),
		zap.String("recipient", recipient.Address),
		zap.String("amount", details.RemainingAmount.String()))

	r.pingStatus(ctx, ids[len(ids)-1])
	return receipt, nil
}

// pingStatus nudges the executor to index a fresh transfer. It outlives the
// caller's context but not StatusPingTimeout; the outcome only gets logged.
func (r *Route) pingStatus(parent context.Context, tx entities.TransactionID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.config.StatusPingTimeout)
	r.pingers.Add(1)
	go func() {
		defer r.pingers.Done()
		defer cancel()
		err := retry.Do(ctx, "StatusPinger", r.config.StatusPingPolicy, r.logger, func(ctx context.Context) error {
			statuses, err := r.deps.Status.Status(ctx, tx.TxID, tx.Chain)
			if err != nil {
				return retry.Retryable(err)
			}
			if len(statuses) == 0 {
				return retry.Retryable(errNotIndexed)
			}
			return nil
		})
		if err != nil {
			r.logger.Debug("Status ping gave up", zap.String("origin_tx", tx.String()), zap.Error(err))
		}
	}()
}

// Complete redeems an attested transfer on the destination chain with the
// caller's signer. Expired fast-transfer attestations are refreshed first.
func (r *Route) Complete(ctx context.Context, signer executor.Signer, receipt entities.TransferReceipt) (out entities.TransferReceipt, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Route.Complete",
		attribute.String("route", string(r.kind)),
		attribute.String("state", string(receipt.State)))
	defer func() { tracing.EndSpan(span, err) }()

	attested := receipt.State == entities.TransferStateAttested ||
		(receipt.State == entities.TransferStateFailed && receipt.HasAttestation())
	if !attested || !receipt.HasAttestation() {
		return receipt, domainerrors.AttestationError(fmt.Sprintf("Transfer in state %s cannot be completed", receipt.State))
	}
	if signer.Chain() != receipt.To {
		return receipt, domainerrors.ValidationError("signer", fmt.Sprintf("signer is on %s, transfer ends on %s", signer.Chain(), receipt.To))
	}

	ex, err := r.deps.Executors.Get(receipt.Protocol, receipt.To)
	if err != nil {
		return receipt, err
	}

	att := receipt.Attestation
	if att.Message.MessageBody.ExpirationBlock != nil && att.Message.MessageBody.ExpirationBlock.Sign() != 0 {
		block, err := ex.GetCurrentBlock(ctx)
		if err != nil {
			return receipt, fmt.Errorf("get current block on %s: %w", receipt.To, err)
		}
		if att.Message.Expired(block) {
			tx, ok := receipt.LastOriginTx()
			if !ok {
				return receipt, fmt.Errorf("refresh attestation: %w", domainerrors.ErrMissingAttestation)
			}
			r.logger.Info("Attestation expired, requesting a new one",
				zap.String("origin_tx", tx.String()),
				zap.Uint64("block", block),
				zap.String("expiration_block", att.Message.MessageBody.ExpirationBlock.String()))
			if att, err = r.deps.Attestations.Refresh(ctx, tx, att.Message, block); err != nil {
				return receipt, fmt.Errorf("%w: %w", domainerrors.AttestationError(fmt.Sprintf("Failed to refresh expired attestation for %s", tx)), err)
			}
		}
	}

	txs, err := ex.Redeem(ctx, signer.Address(), att.Message, att.Attestation)
	if err != nil {
		return receipt, fmt.Errorf("build redeem: %w", err)
	}
	ids, err := signer.SignAndSend(ctx, txs)
	if err != nil {
		return receipt, fmt.Errorf("send redeem: %w", err)
	}

	out = receipt.Clone()
	out.Attestation = att
	out.State = entities.TransferStateDestinationInitiated
	out.DestinationTxs = append(out.DestinationTxs, ids...)
	out.UpdatedAt = r.now().UTC()
	return out, nil
}

// Resume rebuilds a receipt from a source transaction alone.
func (r *Route) Resume(ctx context.Context, tx entities.TransactionID) (receipt entities.TransferReceipt, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Route.Resume",
		attribute.String("route", string(r.kind)),
		attribute.String("origin_tx", tx.String()))
	defer func() { tracing.EndSpan(span, err) }()

	if r.kind.Protocol() == entities.ProtocolCCTPv1 {
		return r.resumeV1(ctx, tx)
	}

	att, err := r.deps.Attestations.Fetch(ctx, tx)
	if err != nil {
		return receipt, err
	}
	if att == nil || att.Message == nil {
		return receipt, fmt.Errorf("%w: %w", domainerrors.AttestationError(fmt.Sprintf("No attestation found for %s", tx)), domainerrors.ErrAttestationPending)
	}

	dst, ok := entities.ChainForCircleDomain(r.config.Network, att.Message.DestinationDomain)
	if !ok {
		return receipt, domainerrors.ConfigurationError(fmt.Sprintf("no chain for Circle domain %d", att.Message.DestinationDomain))
	}
	ex, err := r.deps.Executors.Get(entities.ProtocolCCTPv2, dst)
	if err != nil {
		return receipt, err
	}
	done, err := ex.IsTransferCompleted(ctx, att.Message)
	if err != nil {
		return receipt, fmt.Errorf("check completion on %s: %w", dst, err)
	}

	receipt = entities.TransferReceipt{
		Protocol:    entities.ProtocolCCTPv2,
		From:        tx.Chain,
		To:          dst,
		State:       entities.TransferStateAttested,
		OriginTxs:   []entities.TransactionID{tx},
		Attestation: att,
		UpdatedAt:   r.now().UTC(),
	}
	if done {
		receipt.State = entities.TransferStateDestinationFinalized
	}
	return receipt, nil
}

// resumeV1 has no Circle message to read the destination from, so it uses
// the request the executor indexed.
func (r *Route) resumeV1(ctx context.Context, tx entities.TransactionID) (entities.TransferReceipt, error) {
	statuses, err := r.deps.Status.Status(ctx, tx.TxID, tx.Chain)
	if err != nil {
		return entities.TransferReceipt{}, err
	}
	if len(statuses) == 0 {
		return entities.TransferReceipt{}, fmt.Errorf("%w: %w", domainerrors.AttestationError(fmt.Sprintf("No relay found for %s", tx)), domainerrors.ErrAttestationPending)
	}
	dst, ok := entities.ChainFromID(statuses[0].RequestForExecution.DstChain)
	if !ok {
		return entities.TransferReceipt{}, domainerrors.ConfigurationError(fmt.Sprintf("unknown destination chain id %d", statuses[0].RequestForExecution.DstChain))
	}

	receipt := entities.TransferReceipt{
		Protocol:  entities.ProtocolCCTPv1,
		From:      tx.Chain,
		To:        dst,
		State:     entities.TransferStateSourceInitiated,
		OriginTxs: []entities.TransactionID{tx},
		UpdatedAt: r.now().UTC(),
	}
	receipt, _, err = r.deps.Tracker.Poll(ctx, receipt)
	return receipt, err
}

// Track follows receipt until it is terminal or timeout passes. A negative
// timeout selects the configured default.
func (r *Route) Track(ctx context.Context, receipt entities.TransferReceipt, timeout time.Duration, updates chan<- entities.TransferReceipt) (entities.TransferReceipt, error) {
	if timeout < 0 {
		timeout = r.config.TrackTimeout
	}
	return r.deps.Tracker.Track(ctx, receipt, timeout, updates)
}
