// Package evm builds CCTP executor transactions for EVM chains.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/internal/domain/services/executor"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// Circle deploys MessageTransmitterV2 at the same address on every EVM chain
// of a network.
var defaultMessageTransmitterV2 = map[entities.Network]string{
	entities.NetworkMainnet: "0x81D40F21F12A8F0E3252Bccb954D722d4c464B64",
	entities.NetworkTestnet: "0xE737e5cEBEEBa77EFE34D4aa090756590b1CE275",
}

var nativeChainIDs = map[entities.Network]map[entities.Chain]int64{
	entities.NetworkMainnet: {
		entities.ChainEthereum:  1,
		entities.ChainOptimism:  10,
		entities.ChainPolygon:   137,
		entities.ChainBase:      8453,
		entities.ChainArbitrum:  42161,
		entities.ChainAvalanche: 43114,
	},
	entities.NetworkTestnet: {
		entities.ChainSepolia:         11155111,
		entities.ChainOptimismSepolia: 11155420,
		entities.ChainPolygonSepolia:  80002,
		entities.ChainBaseSepolia:     84532,
		entities.ChainArbitrumSepolia: 421614,
		entities.ChainAvalanche:       43113,
	},
}

// Backend is the subset of ethclient.Client the executor reads chain state with.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ExecutorConfig configures one chain and protocol
type ExecutorConfig struct {
	Network  entities.Network
	Chain    entities.Chain
	Protocol entities.Protocol
	// Shim is the executor-aware depositForBurn wrapper.
	Shim string
	// MessageTransmitter defaults to Circle's v2 deployment.
	MessageTransmitter string
	// TokenAccounts resolves Solana mint recipients. Without it Solana
	// recipients are used as given.
	TokenAccounts executor.TokenAccountResolver
}

// Executor is the EVM ChainExecutor
type Executor struct {
	config             ExecutorConfig
	backend            Backend
	chainID            *big.Int
	shim               common.Address
	usdc               common.Address
	messageTransmitter common.Address
	logger             *zap.Logger
}

var _ executor.ChainExecutor = (*Executor)(nil)

// NewExecutor validates config against the static contract tables.
func NewExecutor(config ExecutorConfig, backend Backend, logger *zap.Logger) (*Executor, error) {
	if config.Chain.Platform() != entities.PlatformEVM {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("%s is not an EVM chain", config.Chain))
	}
	id, ok := nativeChainIDs[config.Network][config.Chain]
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no chain id for %s on %s", config.Chain, config.Network))
	}
	usdc, ok := entities.USDCContract(config.Network, config.Chain)
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no USDC contract for %s on %s", config.Chain, config.Network))
	}
	if config.Shim == "" && config.Protocol == entities.ProtocolCCTPv1 {
		config.Shim = entities.ShimContractsV1[config.Network][config.Chain]
	}
	if !common.IsHexAddress(config.Shim) {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no %s shim contract for %s", config.Protocol, config.Chain))
	}
	if config.MessageTransmitter == "" {
		config.MessageTransmitter = defaultMessageTransmitterV2[config.Network]
	}
	if !common.IsHexAddress(config.MessageTransmitter) {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("invalid message transmitter %q", config.MessageTransmitter))
	}

	return &Executor{
		config:             config,
		backend:            backend,
		chainID:            big.NewInt(id),
		shim:               common.HexToAddress(config.Shim),
		usdc:               common.HexToAddress(usdc),
		messageTransmitter: common.HexToAddress(config.MessageTransmitter),
		logger:             logger,
	}, nil
}

func (e *Executor) Chain() entities.Chain { return e.config.Chain }

// Transfer builds an optional approve followed by the shim's depositForBurn.
// The burned amount includes the referrer fee; the executor is paid
// EstimatedCost in native gas.
func (e *Executor) Transfer(ctx context.Context, sender string, recipient entities.ChainAddress, details *entities.QuoteDetails) ([]entities.UnsignedTransaction, error) {
	if !common.IsHexAddress(sender) {
		return nil, domainerrors.ValidationError("sender", fmt.Sprintf("invalid sender %q", sender))
	}
	if details == nil || details.RemainingAmount == nil || details.ReferrerFee == nil || details.EstimatedCost == nil {
		return nil, domainerrors.ValidationError("details", "incomplete quote details")
	}
	from := common.HexToAddress(sender)
	amount := new(big.Int).Add(details.RemainingAmount, details.ReferrerFee)

	mintRecipient, err := e.mintRecipient(recipient)
	if err != nil {
		return nil, err
	}
	domain, ok := entities.CircleDomain(e.config.Network, recipient.Chain)
	if !ok {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("no Circle domain for %s", recipient.Chain))
	}
	if !common.IsHexAddress(details.Referrer.Address) {
		return nil, domainerrors.ConfigurationError(fmt.Sprintf("invalid referrer %q", details.Referrer.Address))
	}

	var txs []entities.UnsignedTransaction

	allowance, err := e.allowance(ctx, from)
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) < 0 {
		data, err := erc20.Pack("approve", e.shim, amount)
		if err != nil {
			return nil, fmt.Errorf("pack approve: %w", err)
		}
		txs = append(txs, e.unsignedTx(from, e.usdc, data, nil, "ERC20.approve of CCTP executor shim"))
	}

	v1 := DepositForBurnV1{
		Amount:            amount,
		DestinationChain:  recipient.Chain.ID(),
		DestinationDomain: domain,
		MintRecipient:     mintRecipient,
		BurnToken:         e.usdc,
		ExecutorArgs: ExecutorArgs{
			RefundAddress: from,
			SignedQuote:   details.SignedQuote,
			Instructions:  details.RelayInstructions,
		},
		FeeArgs: FeeArgs{
			Dbps:  details.ReferrerFeeDbps,
			Payee: common.HexToAddress(details.Referrer.Address),
		},
	}

	var data []byte
	description := "CCTPExecutor.depositForBurn"
	if e.config.Protocol == entities.ProtocolCCTPv2 {
		// A zero destination caller lets anyone call receiveMessage.
		data, err = DepositForBurnV2{
			DepositForBurnV1:     v1,
			MaxFee:               details.FastTransferMaxFee,
			MinFinalityThreshold: details.MinFinalityThreshold,
		}.pack()
		description = "CCTPv2Executor.depositForBurn"
	} else {
		data, err = v1.pack()
	}
	if err != nil {
		return nil, fmt.Errorf("pack depositForBurn: %w", err)
	}
	txs = append(txs, e.unsignedTx(from, e.shim, data, details.EstimatedCost, description))
	return txs, nil
}

// IsTransferCompleted reads usedNonces on the v2 message transmitter.
func (e *Executor) IsTransferCompleted(ctx context.Context, message *layout.CircleV2Message) (bool, error) {
	if e.config.Protocol != entities.ProtocolCCTPv2 {
		return false, fmt.Errorf("usedNonces on %s: %w", e.config.Protocol, domainerrors.ErrUnsupportedOperation)
	}
	if message == nil {
		return false, domainerrors.ErrMissingAttestation
	}
	data, err := messageTransmitterV2.Pack("usedNonces", message.Nonce)
	if err != nil {
		return false, fmt.Errorf("pack usedNonces: %w", err)
	}
	out, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.messageTransmitter, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call usedNonces: %w", err)
	}
	values, err := messageTransmitterV2.Unpack("usedNonces", out)
	if err != nil {
		return false, fmt.Errorf("unpack usedNonces: %w", err)
	}
	used, ok := values[0].(*big.Int)
	if !ok {
		return false, fmt.Errorf("unexpected usedNonces result %T", values[0])
	}
	return used.Cmp(big.NewInt(1)) == 0, nil
}

// Redeem builds receiveMessage for an attested v2 message.
func (e *Executor) Redeem(ctx context.Context, sender string, message *layout.CircleV2Message, attestation []byte) ([]entities.UnsignedTransaction, error) {
	if e.config.Protocol != entities.ProtocolCCTPv2 {
		return nil, fmt.Errorf("receiveMessage on %s: %w", e.config.Protocol, domainerrors.ErrUnsupportedOperation)
	}
	if !common.IsHexAddress(sender) {
		return nil, domainerrors.ValidationError("sender", fmt.Sprintf("invalid sender %q", sender))
	}
	if message == nil || len(attestation) == 0 {
		return nil, domainerrors.ErrMissingAttestation
	}
	raw, err := message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}
	data, err := messageTransmitterV2.Pack("receiveMessage", raw, attestation)
	if err != nil {
		return nil, fmt.Errorf("pack receiveMessage: %w", err)
	}
	tx := e.unsignedTx(common.HexToAddress(sender), e.messageTransmitter, data, nil, "MessageTransmitterV2.receiveMessage")
	return []entities.UnsignedTransaction{tx}, nil
}

// GetCurrentBlock returns the latest block number.
func (e *Executor) GetCurrentBlock(ctx context.Context) (uint64, error) {
	n, err := e.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number on %s: %w", e.config.Chain, err)
	}
	return n, nil
}

func (e *Executor) allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := erc20.Pack("allowance", owner, e.shim)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}
	out, err := e.backend.CallContract(ctx, ethereum.CallMsg{From: owner, To: &e.usdc, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}
	values, err := erc20.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance result %T", values[0])
	}
	return allowance, nil
}

// mintRecipient is the 32-byte address CCTP mints to. On Solana that is the
// recipient's USDC token account rather than the wallet.
func (e *Executor) mintRecipient(recipient entities.ChainAddress) ([32]byte, error) {
	target := recipient
	if recipient.Chain == entities.ChainSolana && e.config.TokenAccounts != nil {
		ata, err := e.config.TokenAccounts.TokenAccount(recipient.Address)
		if err != nil {
			return [32]byte{}, err
		}
		target.Address = ata
	}
	addr, err := target.Universal()
	if err != nil {
		return [32]byte{}, domainerrors.ValidationError("recipient", err.Error())
	}
	return addr, nil
}

func (e *Executor) unsignedTx(from, to common.Address, data []byte, value *big.Int, description string) entities.UnsignedTransaction {
	return entities.UnsignedTransaction{
		Chain:       e.config.Chain,
		Description: description,
		From:        from.Hex(),
		To:          to.Hex(),
		Data:        data,
		Value:       value,
		ChainID:     new(big.Int).Set(e.chainID),
	}
}
