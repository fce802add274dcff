// Package attestation fetches and refreshes Circle attestations for CCTP v2
// burns.
package attestation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/cctp_executor/pkg/layout"
	"github.com/rail-service/cctp_executor/pkg/retry"
)

// IrisClient is the part of the Circle API the service uses.
type IrisClient interface {
	GetMessages(ctx context.Context, sourceDomain uint32, txHash string) (*cctp.MessagesResponse, error)
	Reattest(ctx context.Context, nonce string) (*cctp.ReattestResponse, error)
}

// DefaultReattestPolicy polls for a refreshed attestation for up to roughly
// ten minutes.
var DefaultReattestPolicy = retry.ExponentialPolicy(2*time.Second, 30*time.Second, 20)

// Service resolves burns to attestations
type Service struct {
	client         IrisClient
	network        entities.Network
	reattestPolicy retry.Policy
	logger         *zap.Logger
}

// NewService creates an attestation service
func NewService(client IrisClient, network entities.Network, logger *zap.Logger) *Service {
	return &Service{
		client:         client,
		network:        network,
		reattestPolicy: DefaultReattestPolicy,
		logger:         logger,
	}
}

// WithReattestPolicy overrides the polling schedule used after a reattest.
func (s *Service) WithReattestPolicy(p retry.Policy) *Service {
	s.reattestPolicy = p
	return s
}

// Fetch returns the attestation for the burn in tx, or nil while Circle has
// not seen or not yet signed it.
func (s *Service) Fetch(ctx context.Context, tx entities.TransactionID) (*entities.Attestation, error) {
	domain, ok := entities.CircleDomain(s.network, tx.Chain)
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no Circle domain for %s", tx.Chain))
	}

	resp, err := s.client.GetMessages(ctx, domain, tx.TxID)
	if err != nil {
		var apiErr *cctp.ErrorResponse
		if errors.Is(err, cctp.ErrNoMessages) || (errors.As(err, &apiErr) && apiErr.IsNotFound()) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch attestation for %s: %w", tx, err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	msg := resp.Messages[0]
	if !msg.Ready() {
		s.logger.Debug("Attestation not ready",
			zap.String("tx", tx.String()),
			zap.String("status", msg.Status))
		return nil, nil
	}
	return decodeAttestation(tx.TxID, msg)
}

func decodeAttestation(id string, msg cctp.Message) (*entities.Attestation, error) {
	rawMessage, err := layout.DecodeHex(msg.Message)
	if err != nil {
		return nil, domainerrors.DecodeError("circle message", err)
	}
	message, err := layout.DecodeCircleV2Message(rawMessage)
	if err != nil {
		return nil, domainerrors.DecodeError("circle message", err)
	}
	signature, err := layout.DecodeHex(msg.Attestation)
	if err != nil {
		return nil, domainerrors.DecodeError("attestation", err)
	}
	return &entities.Attestation{
		ID:          id,
		Message:     message,
		Attestation: signature,
	}, nil
}

// Refresh asks Circle to re-sign an expired fast-transfer message and waits
// for an attestation that is valid past currentBlock.
func (s *Service) Refresh(ctx context.Context, tx entities.TransactionID, message *layout.CircleV2Message, currentBlock uint64) (*entities.Attestation, error) {
	if message == nil {
		return nil, domainerrors.ErrMissingAttestation
	}

	nonce := message.NonceHex()
	resp, err := s.client.Reattest(ctx, nonce)
	var apiErr *cctp.ErrorResponse
	switch {
	case err == nil:
		s.logger.Info("Requested re-attestation",
			zap.String("tx", tx.String()),
			zap.String("nonce", nonce),
			zap.String("message", resp.Message))
	case errors.As(err, &apiErr) && apiErr.IsAlreadyFinalized():
		// A finalized message never expires; the stored one is stale.
		s.logger.Info("Message already finalized, re-fetching",
			zap.String("tx", tx.String()),
			zap.String("nonce", nonce))
	default:
		return nil, fmt.Errorf("reattest %s: %w", nonce, err)
	}

	var fresh *entities.Attestation
	err = retry.Do(ctx, "reattest", s.reattestPolicy, s.logger, func(ctx context.Context) error {
		att, err := s.Fetch(ctx, tx)
		if err != nil {
			if errors.Is(err, domainerrors.ErrDecode) || errors.Is(err, domainerrors.ErrConfiguration) {
				return err
			}
			return retry.Retryable(err)
		}
		if att == nil || att.Message == nil {
			return retry.Retryable(domainerrors.ErrAttestationPending)
		}
		if att.Message.Expired(currentBlock) {
			return retry.Retryable(fmt.Errorf("attestation for %s still expired at block %d", nonce, currentBlock))
		}
		fresh = att
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wait for re-attestation: %w", err)
	}
	return fresh, nil
}
