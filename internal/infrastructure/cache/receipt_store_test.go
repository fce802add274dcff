package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
	"github.com/rail-service/cctp_executor/pkg/layout"
)

// memoryRedis is an in-process RedisClient
type memoryRedis struct {
	mu   sync.Mutex
	kv   map[string][]byte
	ttl  map[string]time.Duration
	sets map[string]map[string]struct{}
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{
		kv:   make(map[string][]byte),
		ttl:  make(map[string]time.Duration),
		sets: make(map[string]map[string]struct{}),
	}
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = data
	m.ttl[key] = expiration
	return nil
}

func (m *memoryRedis) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	data, ok := m.kv[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("key '%s': %w", key, ErrNotFound)
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

func (m *memoryRedis) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, mem := range members {
		set[mem] = struct{}{}
	}
	return nil
}

func (m *memoryRedis) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range members {
		delete(m.sets[key], mem)
	}
	return nil
}

func (m *memoryRedis) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	return out, nil
}

func (m *memoryRedis) Ping(context.Context) error { return nil }
func (m *memoryRedis) Close() error               { return nil }

var origin = entities.TransactionID{Chain: entities.ChainSepolia, TxID: "0xabc"}

func pendingReceipt() entities.TransferReceipt {
	msg := &layout.CircleV2Message{
		Version:           1,
		DestinationDomain: 6,
		MessageBody: layout.CircleBurnMessageV2{
			Version:         1,
			Amount:          big.NewInt(999_900),
			ExpirationBlock: big.NewInt(0),
		},
	}
	msg.Nonce[31] = 9
	return entities.TransferReceipt{
		Protocol:    entities.ProtocolCCTPv2,
		From:        entities.ChainSepolia,
		To:          entities.ChainBaseSepolia,
		State:       entities.TransferStateAttested,
		OriginTxs:   []entities.TransactionID{origin},
		Attestation: &entities.Attestation{ID: origin.TxID, Message: msg, Attestation: entities.HexBytes{0xde, 0xad}},
		UpdatedAt:   time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestReceiptStore(t *testing.T) {
	ctx := context.Background()
	redis := newMemoryRedis()
	store := NewReceiptStore(redis, zap.NewNop())

	in := pendingReceipt()
	require.NoError(t, store.Save(ctx, in))
	assert.Equal(t, ReceiptTTL, redis.ttl["cctp:receipt:Sepolia:0xabc"])

	got, err := store.Get(ctx, origin)
	require.NoError(t, err)
	assert.Equal(t, in.State, got.State)
	require.True(t, got.HasAttestation())
	assert.Equal(t, in.Attestation.Message.Nonce, got.Attestation.Message.Nonce)
	assert.Equal(t, 0, in.Attestation.Message.MessageBody.Amount.Cmp(got.Attestation.Message.MessageBody.Amount))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	done := in.Clone()
	done.State = entities.TransferStateDestinationFinalized
	require.NoError(t, store.Save(ctx, done))
	pending, err = store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, store.Delete(ctx, origin))
	_, err = store.Get(ctx, origin)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestReceiptStoreFailedKeepsError(t *testing.T) {
	ctx := context.Background()
	store := NewReceiptStore(newMemoryRedis(), zap.NewNop())

	in := pendingReceipt()
	in.Protocol = entities.ProtocolCCTPv1
	in.Attestation = nil
	in.State = entities.TransferStateFailed
	in.Error = &domainerrors.RelayFailedError{Status: "underpaid"}
	require.NoError(t, store.Save(ctx, in))

	got, err := store.Get(ctx, origin)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.ErrorIs(t, got.Error, domainerrors.ErrRelayFailed)
	assert.Equal(t, "underpaid", got.Error.Status)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "v1 failures are terminal")
}

func TestListPendingDropsExpired(t *testing.T) {
	ctx := context.Background()
	redis := newMemoryRedis()
	store := NewReceiptStore(redis, zap.NewNop())

	require.NoError(t, store.Save(ctx, pendingReceipt()))
	require.NoError(t, redis.Del(ctx, "cctp:receipt:Sepolia:0xabc"))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, redis.sets[pendingSetKey])
}

func TestSaveRequiresOrigin(t *testing.T) {
	store := NewReceiptStore(newMemoryRedis(), zap.NewNop())
	assert.Error(t, store.Save(context.Background(), entities.TransferReceipt{}))
}
