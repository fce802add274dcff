package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

type stubExecutor struct{ chain entities.Chain }

func (s stubExecutor) Chain() entities.Chain { return s.chain }

func (stubExecutor) Transfer(context.Context, string, entities.ChainAddress, *entities.QuoteDetails) ([]entities.UnsignedTransaction, error) {
	return nil, nil
}

func (stubExecutor) IsTransferCompleted(context.Context, *layout.CircleV2Message) (bool, error) {
	return false, nil
}

func (stubExecutor) Redeem(context.Context, string, *layout.CircleV2Message, []byte) ([]entities.UnsignedTransaction, error) {
	return nil, nil
}

func (stubExecutor) GetCurrentBlock(context.Context) (uint64, error) { return 0, nil }

func TestRegistry(t *testing.T) {
	sepolia := stubExecutor{chain: entities.ChainSepolia}
	solana := stubExecutor{chain: entities.ChainSolana}

	reg, err := NewRegistry(entities.NetworkTestnet,
		Entry{Protocol: entities.ProtocolCCTPv1, Executor: sepolia},
		Entry{Protocol: entities.ProtocolCCTPv2, Executor: sepolia},
		Entry{Protocol: entities.ProtocolCCTPv2, Executor: solana},
	)
	require.NoError(t, err)

	got, err := reg.Get(entities.ProtocolCCTPv2, entities.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, entities.ChainSolana, got.Chain())

	_, err = reg.Get(entities.ProtocolCCTPv1, entities.ChainSolana)
	assert.ErrorIs(t, err, domainerrors.ErrConfiguration)

	assert.ElementsMatch(t, []entities.Chain{entities.ChainSepolia, entities.ChainSolana}, reg.Chains(entities.ProtocolCCTPv2))

	_, err = NewRegistry(entities.NetworkTestnet,
		Entry{Protocol: entities.ProtocolCCTPv1, Executor: sepolia},
		Entry{Protocol: entities.ProtocolCCTPv1, Executor: sepolia},
	)
	assert.ErrorIs(t, err, domainerrors.ErrConfiguration)
}
