package transfer_watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
)

type mockStore struct {
	mock.Mock
	mu    sync.Mutex
	saved []entities.TransferReceipt
}

func (m *mockStore) ListPending(ctx context.Context) ([]entities.TransferReceipt, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]entities.TransferReceipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Save(_ context.Context, receipt entities.TransferReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, receipt)
	return nil
}

// stubTracker moves each receipt to the state registered for its tx
type stubTracker struct {
	next map[string]entities.TransferState
	err  map[string]error
}

func (s *stubTracker) Track(_ context.Context, receipt entities.TransferReceipt, timeout time.Duration, _ chan<- entities.TransferReceipt) (entities.TransferReceipt, error) {
	tx, _ := receipt.LastOriginTx()
	if err := s.err[tx.TxID]; err != nil {
		return receipt, err
	}
	state, ok := s.next[tx.TxID]
	if !ok || timeout <= 0 {
		return receipt, nil
	}
	out := receipt.Clone()
	out.State = state
	out.UpdatedAt = receipt.UpdatedAt.Add(time.Second)
	return out, nil
}

func receipt(txID string, protocol entities.Protocol, state entities.TransferState) entities.TransferReceipt {
	return entities.TransferReceipt{
		Protocol:  protocol,
		From:      entities.ChainSepolia,
		To:        entities.ChainBaseSepolia,
		State:     state,
		OriginTxs: []entities.TransactionID{{Chain: entities.ChainSepolia, TxID: txID}},
		UpdatedAt: time.Unix(1_700_000_000, 0),
	}
}

func TestRunOnce(t *testing.T) {
	store := &mockStore{}
	store.On("ListPending", mock.Anything).Return([]entities.TransferReceipt{
		receipt("0x1", entities.ProtocolCCTPv1, entities.TransferStateSourceInitiated),
		receipt("0x2", entities.ProtocolCCTPv2, entities.TransferStateSourceInitiated),
		receipt("0x3", entities.ProtocolCCTPv2, entities.TransferStateSourceInitiated),
		receipt("0x4", entities.ProtocolCCTPv2, entities.TransferStateAttested),
	}, nil)

	tracker := &stubTracker{
		next: map[string]entities.TransferState{
			"0x1": entities.TransferStateDestinationFinalized,
			"0x2": entities.TransferStateAttested,
		},
		err: map[string]error{"0x4": errors.New("rpc down")},
	}

	w := NewWorker(store, tracker, Config{TrackTimeout: time.Second, Concurrency: 2}, zap.NewNop())
	require.NoError(t, w.RunOnce(context.Background()))

	store.AssertExpectations(t)
	require.Len(t, store.saved, 2, "only receipts that moved are written back")
	states := map[string]entities.TransferState{}
	for _, r := range store.saved {
		tx, _ := r.LastOriginTx()
		states[tx.TxID] = r.State
	}
	assert.Equal(t, entities.TransferStateDestinationFinalized, states["0x1"])
	assert.Equal(t, entities.TransferStateAttested, states["0x2"])
}

func TestRunOnceListError(t *testing.T) {
	store := &mockStore{}
	store.On("ListPending", mock.Anything).Return(nil, errors.New("redis down"))

	w := NewWorker(store, &stubTracker{}, DefaultConfig(), zap.NewNop())
	assert.Error(t, w.RunOnce(context.Background()))
	assert.Empty(t, store.saved)
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	store := &mockStore{}
	w := NewWorker(store, &stubTracker{}, DefaultConfig(), zap.NewNop())
	w.running.Store(true)

	require.NoError(t, w.RunOnce(context.Background()))
	store.AssertNotCalled(t, "ListPending", mock.Anything)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewWorker(&mockStore{}, &stubTracker{}, Config{Schedule: "not a schedule"}, zap.NewNop())
	assert.Error(t, w.Start())
}

func TestStartStop(t *testing.T) {
	store := &mockStore{}
	store.On("ListPending", mock.Anything).Return([]entities.TransferReceipt{}, nil).Maybe()

	w := NewWorker(store, &stubTracker{}, DefaultConfig(), zap.NewNop())
	require.NoError(t, w.Start())
	w.Stop()
}
