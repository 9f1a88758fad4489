// Package archive implements the auto-archive drain: a worker that pulls
// auto-archived products one at a time and restores them to the active
// catalog until the queue is empty, the provider's daily quota is spent, or
// access is denied.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"sellerpilot/internal/ozon"
	"sellerpilot/internal/types"
)

const (
	// batchSize is deliberately 1: one product per call maximizes fault
	// isolation, so a single poisoned item can never block the rest of the
	// queue. Throughput is traded away on purpose.
	batchSize = 1
	// cycleDelay is the politeness pause between ordinary cycles, on top of
	// the client's rate limiting.
	cycleDelay = 500 * time.Millisecond
	// panicCooldown is the pause after a recovered panic before resuming.
	panicCooldown = 1000 * time.Millisecond
)

// MarketClient is the slice of the marketplace client the worker needs.
type MarketClient interface {
	ListAutoArchivedProducts(ctx context.Context, limit int, lastID string) *ozon.CallResult
	UnarchiveProducts(ctx context.Context, productIDs []int64) *ozon.CallResult
	RecordLimitError()
	HasRecentLimitError() bool
}

// Worker drains the auto-archive queue for one store.
type Worker struct {
	client    MarketClient
	storeName string
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Config holds the dependencies for a Worker.
type Config struct {
	Client    MarketClient
	StoreName string
	Logger    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithSleepFunc overrides the pacing sleeps. For tests.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Worker) { w.sleep = sleep }
}

// New creates a Worker.
func New(cfg Config, opts ...Option) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		client:    cfg.Client,
		storeName: cfg.StoreName,
		logger:    logger.With(slog.String("store", cfg.StoreName)),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until a terminal condition and returns the result.
//
// The loop has no maximum cycle count and no wall-clock deadline; that is an
// intentional property, not an oversight. It ends only through the three
// business terminal states (queue empty, daily quota reached, access denied)
// or through caller cancellation via ctx, which is checked once per cycle.
// Transient failures, including panics inside a cycle, are logged and the
// loop continues after a cooldown.
func (w *Worker) Run(ctx context.Context) *types.UnarchiveResult {
	total := 0
	cycles := 0

	w.logger.Info("starting auto-archive drain",
		slog.Int("batch_size", batchSize),
	)

	for {
		if err := ctx.Err(); err != nil {
			return w.cancelled(total, cycles, err)
		}
		cycles++

		result, delay := w.cycle(ctx, &total, cycles)
		if result != nil {
			return result
		}
		if delay > 0 {
			if err := w.sleep(ctx, delay); err != nil {
				return w.cancelled(total, cycles, err)
			}
		}
	}
}

// cycle performs one iteration. It returns a non-nil result when a terminal
// state is reached, otherwise the delay to apply before the next cycle.
// Panics are converted into a logged transient failure with a cooldown; the
// loop is designed to be self-healing.
func (w *Worker) cycle(ctx context.Context, total *int, cycles int) (result *types.UnarchiveResult, delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in drain cycle",
				slog.Int("cycle", cycles),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result = nil
			delay = panicCooldown
		}
	}()

	w.logger.Debug("drain cycle", slog.Int("cycle", cycles), slog.Int("total_unarchived", *total))

	list := w.client.ListAutoArchivedProducts(ctx, batchSize, "")
	if !list.Success {
		w.logger.Warn("auto-archive listing failed, retrying",
			slog.Int("cycle", cycles),
			slog.String("error", list.ErrorText),
		)
		return nil, 0
	}

	items := list.Items()
	if len(items) == 0 {
		// An empty page is ambiguous: the provider also returns nothing
		// once the daily quota is spent, even when items remain hidden
		// behind it. The recent quota-error memory disambiguates.
		if w.client.HasRecentLimitError() {
			w.logger.Info("no items returned but quota errors were seen recently, assuming daily limit",
				slog.Int("total_unarchived", *total),
			)
			return w.dailyLimit(*total, cycles), 0
		}
		w.logger.Info("auto-archive queue fully drained",
			slog.Int("total_unarchived", *total),
		)
		return &types.UnarchiveResult{
			Success:         true,
			TotalUnarchived: *total,
			CyclesCompleted: cycles,
			StoppedReason:   types.StopAutoArchiveEmpty,
			Message:         fmt.Sprintf("auto-archive queue is empty; unarchived %d products over %d cycles", *total, cycles),
		}, 0
	}

	ids := ozon.ProductIDs(items)
	if len(ids) == 0 {
		w.logger.Warn("no parseable product ids in batch", slog.Int("cycle", cycles))
		return nil, 0
	}

	res := w.client.UnarchiveProducts(ctx, ids)
	if res.Success {
		*total += len(ids)
		w.logger.Info("unarchived batch",
			slog.Int("count", len(ids)),
			slog.Int("total_unarchived", *total),
		)
		return nil, cycleDelay
	}

	switch ozon.ClassifyError(res.ErrorText) {
	case ozon.ErrKindQuota:
		w.client.RecordLimitError()
		w.logger.Info("daily unarchive quota reached",
			slog.Int("total_unarchived", *total),
			slog.String("error", res.ErrorText),
		)
		return w.dailyLimit(*total, cycles), 0
	case ozon.ErrKindAccessDenied:
		w.logger.Error("access denied by marketplace API",
			slog.String("error", res.ErrorText),
		)
		return &types.UnarchiveResult{
			Success:         false,
			TotalUnarchived: *total,
			CyclesCompleted: cycles,
			StoppedReason:   types.StopAccessDenied,
			Message:         fmt.Sprintf("API access denied; unarchived %d products before the failure; check the store credentials", *total),
		}, 0
	default:
		w.logger.Warn("unarchive failed, retrying with next batch",
			slog.String("error", res.ErrorText),
		)
		return nil, cycleDelay
	}
}

// dailyLimit builds the quota-exhausted terminal result. Reported as success:
// the run did everything the provider allows today.
func (w *Worker) dailyLimit(total, cycles int) *types.UnarchiveResult {
	return &types.UnarchiveResult{
		Success:         true,
		TotalUnarchived: total,
		CyclesCompleted: cycles,
		StoppedReason:   types.StopDailyLimitReached,
		Message:         fmt.Sprintf("daily unarchive quota reached; unarchived %d products over %d cycles, items may remain, run again after the quota resets", total, cycles),
	}
}

// cancelled packages an externally aborted run. Cancellation is not one of
// the business terminal states, so StoppedReason stays empty.
func (w *Worker) cancelled(total, cycles int, err error) *types.UnarchiveResult {
	w.logger.Info("drain cancelled",
		slog.Int("total_unarchived", total),
		slog.String("reason", err.Error()),
	)
	return &types.UnarchiveResult{
		Success:         false,
		TotalUnarchived: total,
		CyclesCompleted: cycles,
		Message:         fmt.Sprintf("run cancelled: %v", err),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
