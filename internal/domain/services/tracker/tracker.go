// Package tracker advances transfer receipts towards a terminal state by
// polling the executor's relay status, Circle's attestation service and the
// destination chain.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/executor"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/executorapi"
	"github.com/rail-service/cctp_executor/pkg/layout"
	"github.com/rail-service/cctp_executor/pkg/metrics"
	"github.com/rail-service/cctp_executor/pkg/tracing"
)

const (
	tracerName = "cctp_executor/tracker"

	DefaultPollInterval = 3 * time.Second
	DefaultTrackTimeout = time.Hour
)

// ErrNoOriginTx is returned for a receipt that has no source transaction to
// look the relay up by.
var ErrNoOriginTx = errors.New("receipt has no origin transaction")

// StatusAPI returns the executor's view of the relays for a source transaction.
type StatusAPI interface {
	Status(ctx context.Context, txHash string, chain entities.Chain) ([]executorapi.StatusResponse, error)
}

// AttestationSource returns Circle's attestation for a burn, or nil while
// there is none yet.
type AttestationSource interface {
	Fetch(ctx context.Context, tx entities.TransactionID) (*entities.Attestation, error)
}

// ExecutorLookup finds the destination executor for a receipt.
type ExecutorLookup interface {
	Get(protocol entities.Protocol, chain entities.Chain) (executor.ChainExecutor, error)
}

// Event is the state change one Poll made.
type Event struct {
	From entities.TransferState
	To   entities.TransferState
}

// Changed reports whether the receipt moved.
func (e Event) Changed() bool { return e.From != e.To }

// Tracker drives receipts. It holds no per-transfer state, so one Tracker
// serves any number of concurrent Track calls.
type Tracker struct {
	status       StatusAPI
	attestations AttestationSource
	executors    ExecutorLookup
	pollInterval time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// New creates a tracker. pollInterval <= 0 selects DefaultPollInterval.
func New(status StatusAPI, attestations AttestationSource, executors ExecutorLookup, pollInterval time.Duration, logger *zap.Logger) *Tracker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Tracker{
		status:       status,
		attestations: attestations,
		executors:    executors,
		pollInterval: pollInterval,
		now:          time.Now,
		logger:       logger,
	}
}

// Poll runs one tick and returns the receipt it ended on. A tick may take
// several steps, for example Attested and then Failed; Event spans all of
// them. Upstream failures are logged and leave the receipt unchanged. The
// returned error is reserved for receipts that violate an invariant, such as
// a v2 receipt past attestation with no attestation.
func (t *Tracker) Poll(ctx context.Context, receipt entities.TransferReceipt) (entities.TransferReceipt, Event, error) {
	ev := Event{From: receipt.State, To: receipt.State}
	steps, err := t.tick(ctx, receipt)
	if err != nil {
		return receipt, ev, err
	}
	if len(steps) == 0 {
		return receipt.Clone(), ev, nil
	}
	last := steps[len(steps)-1]
	ev.To = last.State
	return last, ev, nil
}

// tick advances a copy of receipt as far as upstream allows and returns a
// snapshot after every state change, oldest first.
func (t *Tracker) tick(ctx context.Context, receipt entities.TransferReceipt) (steps []entities.TransferReceipt, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Tracker.Poll",
		attribute.String("protocol", string(receipt.Protocol)),
		attribute.String("state", string(receipt.State)))
	defer func() { tracing.EndSpan(span, err) }()

	origin, ok := receipt.LastOriginTx()
	if !ok {
		return nil, ErrNoOriginTx
	}

	r := receipt.Clone()
	record := func(from entities.TransferState) {
		if r.State == from {
			return
		}
		r.UpdatedAt = t.now().UTC()
		metrics.TrackerTransitions.WithLabelValues(string(r.Protocol), string(r.State)).Inc()
		t.logger.Info("Transfer state changed",
			zap.String("protocol", string(r.Protocol)),
			zap.String("origin_tx", origin.String()),
			zap.String("from", string(from)),
			zap.String("to", string(r.State)))
		steps = append(steps, r.Clone())
	}

	switch r.Protocol {
	case entities.ProtocolCCTPv1:
		if r.State != entities.TransferStateDestinationFinalized && r.State != entities.TransferStateFailed {
			from := r.State
			t.pollRelay(ctx, &r)
			record(from)
		}
	case entities.ProtocolCCTPv2:
		if err := t.pollV2(ctx, &r, record); err != nil {
			return nil, err
		}
	default:
		return nil, domainerrors.ValidationError("protocol", fmt.Sprintf("unknown protocol %q", r.Protocol))
	}
	return steps, nil
}

// pollV2 walks a v2 receipt through attestation, relay status and
// destination completion, calling record after each stage.
func (t *Tracker) pollV2(ctx context.Context, r *entities.TransferReceipt, record func(from entities.TransferState)) error {
	if r.State == entities.TransferStateSourceInitiated || r.State == entities.TransferStateSourceFinalized {
		tx, _ := r.LastOriginTx()
		att, err := t.attestations.Fetch(ctx, tx)
		if err != nil {
			t.logger.Warn("Failed to fetch attestation",
				zap.String("origin_tx", tx.String()),
				zap.Error(err))
			return nil
		}
		if att == nil {
			return nil
		}
		from := r.State
		r.Attestation = att
		r.State = entities.TransferStateAttested
		record(from)
	}

	if r.State == entities.TransferStateAttested {
		from := r.State
		t.pollRelay(ctx, r)
		record(from)
	}

	// A failed relay may still have been redeemed by someone else.
	if r.State == entities.TransferStateFailed || r.State == entities.TransferStateDestinationInitiated {
		if !r.HasAttestation() {
			return fmt.Errorf("%w: state %s", domainerrors.ErrMissingAttestation, r.State)
		}
		ex, err := t.executors.Get(entities.ProtocolCCTPv2, r.To)
		if err != nil {
			t.logger.Warn("No destination executor", zap.String("chain", string(r.To)), zap.Error(err))
			return nil
		}
		done, err := ex.IsTransferCompleted(ctx, r.Attestation.Message)
		if err != nil {
			t.logger.Warn("Failed to check destination completion",
				zap.String("chain", string(r.To)),
				zap.Error(err))
			return nil
		}
		if done {
			from := r.State
			r.State = entities.TransferStateDestinationFinalized
			record(from)
		}
	}
	return nil
}

// pollRelay maps the executor's relay status onto r. A v2 receipt keeps its
// Circle attestation; a v1 receipt records the relay id in its place.
func (t *Tracker) pollRelay(ctx context.Context, r *entities.TransferReceipt) {
	tx, _ := r.LastOriginTx()
	statuses, err := t.status.Status(ctx, tx.TxID, tx.Chain)
	if err != nil {
		t.logger.Warn("Failed to fetch relay status",
			zap.String("origin_tx", tx.String()),
			zap.Error(err))
		return
	}
	if len(statuses) == 0 {
		return
	}
	relay := statuses[0]
	t.logRequest(relay)

	status := entities.RelayStatus(relay.Status)
	switch {
	case status == entities.RelayStatusSubmitted:
		r.State = entities.TransferStateDestinationFinalized
		if r.Protocol == entities.ProtocolCCTPv1 {
			r.Attestation = &entities.Attestation{ID: relay.ID}
		}
		for _, tx := range relay.Txs {
			if chain, ok := entities.ChainFromID(tx.ChainID); ok {
				r.DestinationTxs = append(r.DestinationTxs, entities.TransactionID{Chain: chain, TxID: tx.TxHash})
			}
		}
	case status.IsFailure():
		r.State = entities.TransferStateFailed
		r.Error = &domainerrors.RelayFailedError{Status: relay.Status}
	}
}

// logRequest decodes the relay's request bytes and logs what the executor
// was asked to deliver.
func (t *Tracker) logRequest(relay executorapi.StatusResponse) {
	raw := relay.RequestForExecution.RequestBytes
	if raw == "" {
		return
	}
	b, err := layout.DecodeHex(raw)
	if err == nil {
		var req layout.Request
		if req, err = layout.UnmarshalRequest(b); err == nil {
			fields := []zap.Field{
				zap.String("relay_id", relay.ID),
				zap.String("status", relay.Status),
				zap.String("request", string(req.Prefix())),
			}
			switch req := req.(type) {
			case layout.VAAv1Request:
				fields = append(fields,
					zap.Uint16("emitter_chain", req.Chain),
					zap.String("emitter_address", layout.EncodeHex(req.Address[:])),
					zap.Uint64("sequence", req.Sequence))
			case layout.NTTv1Request:
				fields = append(fields,
					zap.Uint16("src_chain", req.SrcChain),
					zap.String("src_manager", layout.EncodeHex(req.SrcManager[:])),
					zap.String("message_id", layout.EncodeHex(req.MessageID[:])))
			case layout.CCTPv1Request:
				fields = append(fields,
					zap.Uint32("source_domain", req.SourceDomain),
					zap.Uint64("nonce", req.Nonce))
			}
			t.logger.Debug("Relay status", fields...)
			return
		}
	}
	t.logger.Debug("Undecodable relay request",
		zap.String("relay_id", relay.ID),
		zap.Error(err))
}

// Track polls until receipt is terminal or timeout elapses, sending every
// state the receipt passes through to updates when updates is non-nil,
// including intermediate states reached within a single tick. Running out of time
// is not an error: the last receipt is returned. A zero timeout returns
// receipt as is.
func (t *Tracker) Track(ctx context.Context, receipt entities.TransferReceipt, timeout time.Duration, updates chan<- entities.TransferReceipt) (entities.TransferReceipt, error) {
	if timeout <= 0 || receipt.IsTerminal() {
		return receipt, nil
	}
	deadline := t.now().Add(timeout)
	current := receipt

	for {
		steps, err := t.tick(ctx, current)
		if err != nil {
			return current, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return current, ctxErr
		}

		for _, step := range steps {
			current = step
			if updates == nil {
				continue
			}
			select {
			case updates <- current:
			case <-ctx.Done():
				return current, ctx.Err()
			}
		}
		if current.IsTerminal() {
			return current, nil
		}

		remaining := deadline.Sub(t.now())
		if remaining <= 0 {
			return current, nil
		}
		wait := t.pollInterval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return current, ctx.Err()
		case <-timer.C:
		}
	}
}

// Watch runs Track in a goroutine. The channel yields each state change in
// order and is closed when tracking ends.
func (t *Tracker) Watch(ctx context.Context, receipt entities.TransferReceipt, timeout time.Duration) <-chan entities.TransferReceipt {
	updates := make(chan entities.TransferReceipt, 1)
	go func() {
		defer close(updates)
		final, err := t.Track(ctx, receipt, timeout, updates)
		if err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error("Tracking stopped",
				zap.String("state", string(final.State)),
				zap.Error(err))
		}
	}()
	return updates
}
