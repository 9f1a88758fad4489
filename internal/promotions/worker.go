// Package promotions implements the promotion cleanup pass: scan the store's
// promotional campaigns, pick out the ones funded from the seller's pocket,
// and pull the store's products out of them. A single best-effort pass with
// no internal retry; the scheduler provides repetition.
package promotions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sellerpilot/internal/ozon"
	"sellerpilot/internal/types"
)

// unprofitableKeywords mark campaigns where the discount is charged to the
// seller. Substring match over case-folded title and description; a crude
// heuristic, but it is exactly how the campaigns are worded in practice.
var unprofitableKeywords = []string{
	"за наш счёт",
	"за счёт продавца",
	"промо цена",
	"скидка продавца",
	"вы платите",
	"ваши средства",
	"at seller's expense",
	"seller discount",
	"you pay",
}

// MarketClient is the slice of the marketplace client the worker needs.
type MarketClient interface {
	ListPromotionActions(ctx context.Context) *ozon.CallResult
	ListActionProducts(ctx context.Context, actionID int64, limit int, lastID string) *ozon.CallResult
	RemoveProductsFromAction(ctx context.Context, actionID int64, productIDs []int64) *ozon.CallResult
}

// Worker runs the cleanup pass for one store.
type Worker struct {
	client    MarketClient
	storeName string
	logger    *slog.Logger
}

// Config holds the dependencies for a Worker.
type Config struct {
	Client    MarketClient
	StoreName string
	Logger    *slog.Logger
}

// New creates a Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		client:    cfg.Client,
		storeName: cfg.StoreName,
		logger:    logger.With(slog.String("store", cfg.StoreName)),
	}
}

// Run performs one scan-filter-process pass and returns the aggregate result.
// A failed actions listing aborts immediately; a failure on an individual
// action is recorded and the pass moves on to the next one. Actions are
// processed sequentially so the shared rate limiter stays predictable.
func (w *Worker) Run(ctx context.Context) *types.PromotionResult {
	w.logger.Info("starting promotion cleanup")

	listing := w.client.ListPromotionActions(ctx)
	if !listing.Success {
		return &types.PromotionResult{
			Success: false,
			Errors:  []string{fmt.Sprintf("failed to list actions: %s", listing.ErrorText)},
		}
	}

	actions := listing.Actions()
	selected := filterUnprofitable(actions)
	w.logger.Info("scanned promotion actions",
		slog.Int("total", len(actions)),
		slog.Int("unprofitable", len(selected)),
	)

	result := &types.PromotionResult{Errors: []string{}}
	for _, action := range selected {
		removed, err := w.processAction(ctx, action)
		result.ActionsProcessed++
		result.ProductsRemoved += removed
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("action %d: %v", action.ID, err))
		}
	}
	result.Success = len(result.Errors) == 0

	w.logger.Info("promotion cleanup finished",
		slog.Int("actions_processed", result.ActionsProcessed),
		slog.Int("products_removed", result.ProductsRemoved),
		slog.Int("errors", len(result.Errors)),
	)
	return result
}

// processAction removes all of the store's products from one campaign in
// chunks of the provider's batch cap. A failed chunk is logged and skipped;
// later chunks still run.
func (w *Worker) processAction(ctx context.Context, action ozon.Action) (int, error) {
	w.logger.Info("processing action",
		slog.Int64("action_id", action.ID),
		slog.String("title", action.Title),
	)

	listing := w.client.ListActionProducts(ctx, action.ID, ozon.MaxPageSize, "")
	if !listing.Success {
		return 0, fmt.Errorf("failed to list action products: %s", listing.ErrorText)
	}

	ids := ozon.ProductIDs(listing.Items())
	if len(ids) == 0 {
		w.logger.Info("action has no removable products", slog.Int64("action_id", action.ID))
		return 0, nil
	}

	removed := 0
	for start := 0; start < len(ids); start += ozon.MaxBatchSize {
		end := min(start+ozon.MaxBatchSize, len(ids))
		chunk := ids[start:end]

		res := w.client.RemoveProductsFromAction(ctx, action.ID, chunk)
		if res.Success {
			removed += len(chunk)
			w.logger.Info("removed products from action",
				slog.Int64("action_id", action.ID),
				slog.Int("count", len(chunk)),
			)
			continue
		}
		w.logger.Error("failed to remove product chunk",
			slog.Int64("action_id", action.ID),
			slog.String("error", res.ErrorText),
		)
	}
	return removed, nil
}

// filterUnprofitable selects actions whose title or description matches the
// seller-funded keyword list.
func filterUnprofitable(actions []ozon.Action) []ozon.Action {
	var selected []ozon.Action
	for _, action := range actions {
		title := strings.ToLower(action.Title)
		description := strings.ToLower(action.Description)
		for _, kw := range unprofitableKeywords {
			if strings.Contains(title, kw) || strings.Contains(description, kw) {
				selected = append(selected, action)
				break
			}
		}
	}
	return selected
}
