package transfer_watcher

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rail-service/cctp_executor/internal/domain/entities"
	"github.com/rail-service/cctp_executor/pkg/metrics"
)

// ReceiptStore is the persistence the watcher reads pending receipts from
type ReceiptStore interface {
	ListPending(ctx context.Context) ([]entities.TransferReceipt, error)
	Save(ctx context.Context, receipt entities.TransferReceipt) error
}

// Tracker advances a receipt
type Tracker interface {
	Track(ctx context.Context, receipt entities.TransferReceipt, timeout time.Duration, updates chan<- entities.TransferReceipt) (entities.TransferReceipt, error)
}

// Config holds worker configuration
type Config struct {
	Schedule     string
	TrackTimeout time.Duration
	Concurrency  int
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Schedule:     "@every 1m",
		TrackTimeout: 20 * time.Second,
		Concurrency:  8,
	}
}

// Worker periodically tracks every persisted non-terminal receipt and
// writes back whatever progress it makes.
type Worker struct {
	store   ReceiptStore
	tracker Tracker
	config  Config
	cron    *cron.Cron
	running atomic.Bool
	logger  *zap.Logger
}

func NewWorker(store ReceiptStore, tracker Tracker, config Config, logger *zap.Logger) *Worker {
	defaults := DefaultConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &Worker{
		store:   store,
		tracker: tracker,
		config:  config,
		cron:    cron.New(),
		logger:  logger,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		// the run budget covers one track window per batch plus slack
		ctx, cancel := context.WithTimeout(context.Background(), w.config.TrackTimeout+time.Minute)
		defer cancel()

		if err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Failed to track pending transfers", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Transfer watcher started",
		zap.String("schedule", w.config.Schedule),
		zap.Duration("track_timeout", w.config.TrackTimeout))
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Transfer watcher stopped")
}

// RunOnce tracks every pending receipt once. Overlapping runs are skipped.
func (w *Worker) RunOnce(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("Previous watcher run still in progress, skipping")
		return nil
	}
	defer w.running.Store(false)

	pending, err := w.store.ListPending(ctx)
	if err != nil {
		return err
	}
	metrics.PendingReceipts.Set(float64(len(pending)))
	if len(pending) == 0 {
		return nil
	}

	var completed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for _, receipt := range pending {
		receipt := receipt
		g.Go(func() error {
			if w.track(gCtx, receipt) {
				completed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.PendingReceipts.Set(float64(int64(len(pending)) - completed.Load()))
	w.logger.Info("Watcher run complete",
		zap.Int("pending", len(pending)),
		zap.Int64("completed", completed.Load()))
	return nil
}

// track follows one receipt and persists it. It reports whether the
// receipt reached a terminal state.
func (w *Worker) track(ctx context.Context, receipt entities.TransferReceipt) bool {
	tx, _ := receipt.LastOriginTx()
	log := w.logger.With(zap.Stringer("tx", tx), zap.String("protocol", string(receipt.Protocol)))

	updated, err := w.tracker.Track(ctx, receipt, w.config.TrackTimeout, nil)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		log.Warn("Tracking failed", zap.Error(err))
	}
	if updated.State == receipt.State && updated.UpdatedAt.Equal(receipt.UpdatedAt) {
		return false
	}

	// the run context may be spent, persist regardless
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.store.Save(saveCtx, updated); err != nil {
		log.Error("Failed to persist receipt", zap.Error(err))
		return false
	}
	log.Info("Receipt updated",
		zap.String("from", string(receipt.State)),
		zap.String("to", string(updated.State)))
	return updated.IsTerminal()
}
