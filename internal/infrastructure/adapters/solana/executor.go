package solana

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/executor"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// MessageTransmitterV2ProgramID is Circle's CCTP v2 message transmitter, the
// same on devnet and mainnet.
const MessageTransmitterV2ProgramID = "CCTPV2Sm4AdWt5296sk4P66VBZ7bEhcARwFaaS9YPbeC"

const usedNoncesSeed = "used_nonces"

// TransactionBuilder builds Solana program transactions. Executors without
// one can only answer read-only questions.
type TransactionBuilder interface {
	Transfer(ctx context.Context, sender string, recipient entities.ChainAddress, details *entities.QuoteDetails) ([]entities.UnsignedTransaction, error)
	Redeem(ctx context.Context, sender string, message *layout.CircleV2Message, attestation []byte) ([]entities.UnsignedTransaction, error)
}

// ExecutorConfig configures a Solana executor
type ExecutorConfig struct {
	Network entities.Network
	// MessageTransmitterV2 overrides MessageTransmitterV2ProgramID.
	MessageTransmitterV2 string
	Builder              TransactionBuilder
}

// Executor is the Solana ChainExecutor
type Executor struct {
	network            entities.Network
	rpc                *Client
	messageTransmitter PublicKey
	usdcMint           PublicKey
	builder            TransactionBuilder
	logger             *zap.Logger
}

var _ executor.ChainExecutor = (*Executor)(nil)

// NewExecutor creates a Solana executor for config.Network
func NewExecutor(config ExecutorConfig, rpc *Client, logger *zap.Logger) (*Executor, error) {
	programID := config.MessageTransmitterV2
	if programID == "" {
		programID = MessageTransmitterV2ProgramID
	}
	transmitter, err := ParsePublicKey(programID)
	if err != nil {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("message transmitter: %v", err))
	}
	mintAddr, ok := entities.USDCContract(config.Network, entities.ChainSolana)
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no Solana USDC mint on %s", config.Network))
	}
	mint, err := ParsePublicKey(mintAddr)
	if err != nil {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("usdc mint: %v", err))
	}
	return &Executor{
		network:            config.Network,
		rpc:                rpc,
		messageTransmitter: transmitter,
		usdcMint:           mint,
		builder:            config.Builder,
		logger:             logger,
	}, nil
}

func (e *Executor) Chain() entities.Chain { return entities.ChainSolana }

// Transfer builds the source burn through the injected builder.
func (e *Executor) Transfer(ctx context.Context, sender string, recipient entities.ChainAddress, details *entities.QuoteDetails) ([]entities.UnsignedTransaction, error) {
	if e.builder == nil {
		return nil, fmt.Errorf("solana transfer: %w", domainerrors.ErrUnsupportedOperation)
	}
	return e.builder.Transfer(ctx, sender, recipient, details)
}

// Redeem builds the destination mint through the injected builder.
func (e *Executor) Redeem(ctx context.Context, sender string, message *layout.CircleV2Message, attestation []byte) ([]entities.UnsignedTransaction, error) {
	if e.builder == nil {
		return nil, fmt.Errorf("solana redeem: %w", domainerrors.ErrUnsupportedOperation)
	}
	return e.builder.Redeem(ctx, sender, message, attestation)
}

// UsedNoncesAddress derives the account the message transmitter creates once
// message's nonce is consumed.
func (e *Executor) UsedNoncesAddress(message *layout.CircleV2Message) (PublicKey, error) {
	domain := make([]byte, 4)
	binary.LittleEndian.PutUint32(domain, message.SourceDomain)
	addr, _, err := FindProgramAddress(
		[][]byte{[]byte(usedNoncesSeed), domain, message.Nonce[:8]},
		e.messageTransmitter,
	)
	return addr, err
}

// IsTransferCompleted reports whether the used-nonce account exists. RPC
// failures are logged and read as not completed so trackers keep polling.
func (e *Executor) IsTransferCompleted(ctx context.Context, message *layout.CircleV2Message) (bool, error) {
	if message == nil {
		return false, domainerrors.ErrMissingAttestation
	}
	addr, err := e.UsedNoncesAddress(message)
	if err != nil {
		return false, err
	}
	exists, err := e.rpc.AccountExists(ctx, addr.String())
	if err != nil {
		e.logger.Warn("Failed to check used nonce account",
			zap.String("account", addr.String()),
			zap.Error(err))
		return false, nil
	}
	return exists, nil
}

// GetCurrentBlock returns the current slot.
func (e *Executor) GetCurrentBlock(ctx context.Context) (uint64, error) {
	return e.rpc.GetSlot(ctx)
}

// TokenAccount returns owner's USDC associated token account.
func (e *Executor) TokenAccount(owner string) (string, error) {
	ownerKey, err := ParsePublicKey(owner)
	if err != nil {
		return "", domainerrors.ValidationError("recipient", err.Error())
	}
	ata, err := AssociatedTokenAddress(ownerKey, e.usdcMint)
	if err != nil {
		return "", err
	}
	return ata.String(), nil
}

// AccountExists reports whether address holds an account.
func (e *Executor) AccountExists(ctx context.Context, address string) (bool, error) {
	return e.rpc.AccountExists(ctx, address)
}

// MinimumBalanceForRentExemption returns the rent exemption for size bytes.
func (e *Executor) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return e.rpc.MinimumBalanceForRentExemption(ctx, size)
}
