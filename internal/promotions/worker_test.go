package promotions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"sellerpilot/internal/ozon"
)

// fakeClient serves a fixed action list and per-action product listings, and
// records every removal request.
type fakeClient struct {
	actions        *ozon.CallResult
	productsByID   map[int64]*ozon.CallResult
	removeFailures map[int64]bool

	listedActions []int64
	removals      []removal
}

type removal struct {
	actionID int64
	ids      []int64
}

func (f *fakeClient) ListPromotionActions(_ context.Context) *ozon.CallResult {
	return f.actions
}

func (f *fakeClient) ListActionProducts(_ context.Context, actionID int64, _ int, _ string) *ozon.CallResult {
	f.listedActions = append(f.listedActions, actionID)
	if res, ok := f.productsByID[actionID]; ok {
		return res
	}
	return productListing()
}

func (f *fakeClient) RemoveProductsFromAction(_ context.Context, actionID int64, ids []int64) *ozon.CallResult {
	f.removals = append(f.removals, removal{actionID: actionID, ids: ids})
	if f.removeFailures[actionID] {
		return &ozon.CallResult{ErrorText: "removal refused"}
	}
	return &ozon.CallResult{Success: true, StatusCode: 200}
}

func actionListing(actions ...ozon.Action) *ozon.CallResult {
	data, _ := json.Marshal(map[string]any{"result": actions})
	return &ozon.CallResult{Success: true, StatusCode: 200, Data: data}
}

func productListing(ids ...int64) *ozon.CallResult {
	products := make([]map[string]any, len(ids))
	for i, id := range ids {
		products[i] = map[string]any{"product_id": fmt.Sprintf("%d", id)}
	}
	data, _ := json.Marshal(map[string]any{"result": map[string]any{"products": products}})
	return &ozon.CallResult{Success: true, StatusCode: 200, Data: data}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestWorker(client MarketClient) *Worker {
	return New(Config{Client: client, StoreName: "shop", Logger: quietLogger()})
}

func TestRun_ListingFailureAbortsImmediately(t *testing.T) {
	client := &fakeClient{actions: &ozon.CallResult{ErrorText: "boom"}}
	result := newTestWorker(client).Run(context.Background())

	if result.Success {
		t.Fatal("expected failure when the actions listing fails")
	}
	if result.ActionsProcessed != 0 || result.ProductsRemoved != 0 {
		t.Fatalf("expected zero counts, got %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %v", result.Errors)
	}
}

func TestRun_OnlyUnprofitableActionsSelected(t *testing.T) {
	client := &fakeClient{
		actions: actionListing(
			ozon.Action{ID: 1, Title: "Большая распродажа"},
			ozon.Action{ID: 2, Title: "Скидки за счёт продавца"},
			ozon.Action{ID: 3, Title: "Праздничные цены", Description: "скидка за счёт площадки"},
		),
		productsByID: map[int64]*ozon.CallResult{
			2: productListing(10, 11),
		},
	}
	result := newTestWorker(client).Run(context.Background())

	if !result.Success {
		t.Fatalf("unexpected failure: %v", result.Errors)
	}
	if result.ActionsProcessed != 1 {
		t.Fatalf("actions_processed = %d, want 1", result.ActionsProcessed)
	}
	if len(client.listedActions) != 1 || client.listedActions[0] != 2 {
		t.Fatalf("expected only action 2 to be fetched, got %v", client.listedActions)
	}
	if result.ProductsRemoved != 2 {
		t.Fatalf("products_removed = %d, want 2", result.ProductsRemoved)
	}
}

func TestRun_MatchesDescriptionKeywords(t *testing.T) {
	client := &fakeClient{
		actions: actionListing(
			ozon.Action{ID: 5, Title: "Promo", Description: "You PAY for the discount"},
		),
		productsByID: map[int64]*ozon.CallResult{5: productListing(1)},
	}
	result := newTestWorker(client).Run(context.Background())

	if result.ActionsProcessed != 1 {
		t.Fatalf("case-folded description match failed: %+v", result)
	}
}

func TestRun_RemovesInChunksOfHundred(t *testing.T) {
	ids := make([]int64, 250)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	client := &fakeClient{
		actions:      actionListing(ozon.Action{ID: 9, Title: "скидка продавца"}),
		productsByID: map[int64]*ozon.CallResult{9: productListing(ids...)},
	}
	result := newTestWorker(client).Run(context.Background())

	if len(client.removals) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(client.removals))
	}
	sizes := []int{len(client.removals[0].ids), len(client.removals[1].ids), len(client.removals[2].ids)}
	if sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Fatalf("chunk sizes = %v, want [100 100 50]", sizes)
	}
	if result.ProductsRemoved != 250 {
		t.Fatalf("products_removed = %d, want 250", result.ProductsRemoved)
	}
}

func TestRun_ActionWithoutProductsIsSkippedSilently(t *testing.T) {
	client := &fakeClient{
		actions:      actionListing(ozon.Action{ID: 4, Title: "за наш счёт"}),
		productsByID: map[int64]*ozon.CallResult{4: productListing()},
	}
	result := newTestWorker(client).Run(context.Background())

	if !result.Success {
		t.Fatalf("empty action must not be an error: %v", result.Errors)
	}
	if result.ActionsProcessed != 1 || result.ProductsRemoved != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(client.removals) != 0 {
		t.Fatalf("no removals expected, got %v", client.removals)
	}
}

func TestRun_PerActionFailureDoesNotAbortPass(t *testing.T) {
	client := &fakeClient{
		actions: actionListing(
			ozon.Action{ID: 1, Title: "вы платите"},
			ozon.Action{ID: 2, Title: "вы платите"},
		),
		productsByID: map[int64]*ozon.CallResult{
			1: {ErrorText: "listing exploded"},
			2: productListing(42),
		},
	}
	result := newTestWorker(client).Run(context.Background())

	if result.Success {
		t.Fatal("pass with per-action errors must not report success")
	}
	if result.ActionsProcessed != 2 {
		t.Fatalf("actions_processed = %d, want 2", result.ActionsProcessed)
	}
	if result.ProductsRemoved != 1 {
		t.Fatalf("products_removed = %d, want 1", result.ProductsRemoved)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one recorded error, got %v", result.Errors)
	}
}

func TestRun_FailedChunkDoesNotStopLaterChunks(t *testing.T) {
	ids := make([]int64, 150)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	client := &fakeClient{
		actions:        actionListing(ozon.Action{ID: 7, Title: "ваши средства"}),
		productsByID:   map[int64]*ozon.CallResult{7: productListing(ids...)},
		removeFailures: map[int64]bool{},
	}
	// Fail only the first chunk.
	first := true
	wrapped := &chunkFailingClient{fakeClient: client, failFirst: &first}

	result := newTestWorker(wrapped).Run(context.Background())

	if len(client.removals) != 2 {
		t.Fatalf("expected both chunks attempted, got %d", len(client.removals))
	}
	// Only the second chunk (50 ids) counts; the failed chunk is logged,
	// not retried, and not an error.
	if result.ProductsRemoved != 50 {
		t.Fatalf("products_removed = %d, want 50", result.ProductsRemoved)
	}
	if !result.Success {
		t.Fatalf("failed chunk must not fail the pass: %v", result.Errors)
	}
}

// chunkFailingClient fails the first removal call and delegates the rest.
type chunkFailingClient struct {
	*fakeClient
	failFirst *bool
}

func (c *chunkFailingClient) RemoveProductsFromAction(ctx context.Context, actionID int64, ids []int64) *ozon.CallResult {
	res := c.fakeClient.RemoveProductsFromAction(ctx, actionID, ids)
	if *c.failFirst {
		*c.failFirst = false
		return &ozon.CallResult{ErrorText: "chunk refused"}
	}
	return res
}
