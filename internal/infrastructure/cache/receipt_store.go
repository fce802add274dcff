package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_executor/internal/domain/errors"
)

const (
	receiptKeyPrefix = "cctp:receipt:"
	pendingSetKey    = "cctp:receipts:pending"

	// ReceiptTTL bounds how long a receipt is kept after its last update.
	ReceiptTTL = 7 * 24 * time.Hour
)

// ErrReceiptNotFound is returned when no receipt is stored for a transaction
var ErrReceiptNotFound = fmt.Errorf("receipt %w", domainerrors.ErrNotFound)

// ReceiptStore persists transfer receipts keyed by their last origin
// transaction, and indexes the ones still being tracked.
type ReceiptStore struct {
	client RedisClient
	logger *zap.Logger
}

func NewReceiptStore(client RedisClient, logger *zap.Logger) *ReceiptStore {
	return &ReceiptStore{client: client, logger: logger}
}

func receiptKey(tx entities.TransactionID) string {
	return fmt.Sprintf("%s%s:%s", receiptKeyPrefix, tx.Chain, tx.TxID)
}

// Save writes receipt and updates the pending index.
func (s *ReceiptStore) Save(ctx context.Context, receipt entities.TransferReceipt) error {
	tx, ok := receipt.LastOriginTx()
	if !ok {
		return fmt.Errorf("save receipt: %w", errors.New("receipt has no origin transaction"))
	}
	key := receiptKey(tx)
	if err := s.client.Set(ctx, key, receipt, ReceiptTTL); err != nil {
		return fmt.Errorf("save receipt %s: %w", tx, err)
	}

	var err error
	if receipt.IsTerminal() {
		err = s.client.SRem(ctx, pendingSetKey, key)
	} else {
		err = s.client.SAdd(ctx, pendingSetKey, key)
	}
	if err != nil {
		return fmt.Errorf("index receipt %s: %w", tx, err)
	}
	return nil
}

// Get loads the receipt for tx.
func (s *ReceiptStore) Get(ctx context.Context, tx entities.TransactionID) (*entities.TransferReceipt, error) {
	var receipt entities.TransferReceipt
	if err := s.client.Get(ctx, receiptKey(tx), &receipt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", tx, ErrReceiptNotFound)
		}
		return nil, fmt.Errorf("load receipt %s: %w", tx, err)
	}
	return &receipt, nil
}

// ListPending returns every non-terminal receipt. Index entries whose
// receipt has expired are dropped.
func (s *ReceiptStore) ListPending(ctx context.Context) ([]entities.TransferReceipt, error) {
	keys, err := s.client.SMembers(ctx, pendingSetKey)
	if err != nil {
		return nil, fmt.Errorf("list pending receipts: %w", err)
	}

	out := make([]entities.TransferReceipt, 0, len(keys))
	var stale []string
	for _, key := range keys {
		var receipt entities.TransferReceipt
		if err := s.client.Get(ctx, key, &receipt); err != nil {
			if errors.Is(err, ErrNotFound) {
				stale = append(stale, key)
				continue
			}
			s.logger.Warn("Failed to load pending receipt", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, receipt)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, pendingSetKey, stale...); err != nil {
			s.logger.Warn("Failed to drop expired receipts from index", zap.Int("count", len(stale)), zap.Error(err))
		}
	}
	return out, nil
}

// Delete removes the receipt for tx.
func (s *ReceiptStore) Delete(ctx context.Context, tx entities.TransactionID) error {
	key := receiptKey(tx)
	if err := s.client.SRem(ctx, pendingSetKey, key); err != nil {
		return fmt.Errorf("unindex receipt %s: %w", tx, err)
	}
	if err := s.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete receipt %s: %w", tx, err)
	}
	return nil
}
