// Package executor defines the per-chain transaction builders the relay flow
// depends on, and the static table they are looked up in.
package executor

import (
	"context"
	"fmt"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// ChainExecutor builds CCTP transactions for one chain and answers questions
// about that chain's state.
type ChainExecutor interface {
	Chain() entities.Chain
	// Transfer builds the source-chain burn that pays the executor up front.
	Transfer(ctx context.Context, sender string, recipient entities.ChainAddress, details *entities.QuoteDetails) ([]entities.UnsignedTransaction, error)
	// IsTransferCompleted reports whether the message nonce is consumed on this chain.
	IsTransferCompleted(ctx context.Context, message *layout.CircleV2Message) (bool, error)
	// Redeem builds the destination mint for an attested message.
	Redeem(ctx context.Context, sender string, message *layout.CircleV2Message, attestation []byte) ([]entities.UnsignedTransaction, error)
	GetCurrentBlock(ctx context.Context) (uint64, error)
}

// Signer signs and broadcasts transactions for one account.
type Signer interface {
	Chain() entities.Chain
	Address() string
	SignAndSend(ctx context.Context, txs []entities.UnsignedTransaction) ([]entities.TransactionID, error)
}

// TokenAccountResolver maps a Solana wallet to its USDC token account, which
// is where CCTP mints.
type TokenAccountResolver interface {
	TokenAccount(owner string) (string, error)
}

// Registry maps (network, chain, protocol) to the executor for it. It is
// filled once at startup and read-only afterwards.
type Registry struct {
	network   entities.Network
	executors map[entities.Protocol]map[entities.Chain]ChainExecutor
}

// Entry registers one executor.
type Entry struct {
	Protocol entities.Protocol
	Executor ChainExecutor
}

// NewRegistry builds the table. Registering two executors for the same chain
// and protocol is a configuration error.
func NewRegistry(network entities.Network, entries ...Entry) (*Registry, error) {
	r := &Registry{
		network:   network,
		executors: make(map[entities.Protocol]map[entities.Chain]ChainExecutor),
	}
	for _, e := range entries {
		if e.Executor == nil {
			return nil, domainerrors.ConfigurationError(fmt.Sprintf("nil %s executor", e.Protocol))
		}
		byChain, ok := r.executors[e.Protocol]
		if !ok {
			byChain = make(map[entities.Chain]ChainExecutor)
			r.executors[e.Protocol] = byChain
		}
		chain := e.Executor.Chain()
		if _, dup := byChain[chain]; dup {
			return nil, domainerrors.ConfigurationError(fmt.Sprintf("duplicate %s executor for %s", e.Protocol, chain))
		}
		byChain[chain] = e.Executor
	}
	return r, nil
}

// Get returns the executor for chain.
func (r *Registry) Get(protocol entities.Protocol, chain entities.Chain) (ChainExecutor, error) {
	if ex, ok := r.executors[protocol][chain]; ok {
		return ex, nil
	}
	return nil, domainerrors.ConfigurationError(fmt.Sprintf("no %s executor registered for %s on %s", protocol, chain, r.network))
}

// Chains lists chains with an executor for protocol.
func (r *Registry) Chains(protocol entities.Protocol) []entities.Chain {
	out := make([]entities.Chain, 0, len(r.executors[protocol]))
	for c := range r.executors[protocol] {
		out = append(out, c)
	}
	return out
}
