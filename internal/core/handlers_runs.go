package core

import (
	"fmt"
	"net/http"

	"sellerpilot/internal/types"
)

// maxRunStores caps how many stores one synchronous run request may name.
// Each store is drained in sequence within the request, so an unbounded list
// would hold the connection open indefinitely.
const maxRunStores = 50

// runRequest names the stores to run an automation for.
type runRequest struct {
	StoreNames []string `json:"store_names"`
}

func (r runRequest) validate() error {
	if len(r.StoreNames) == 0 {
		return types.NewAppError(types.ErrCodeValidationEmptyBatch, "store_names must be a non-empty array", nil)
	}
	if len(r.StoreNames) > maxRunStores {
		return types.NewAppError(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("at most %d stores per run, got %d", maxRunStores, len(r.StoreNames)), nil)
	}
	return nil
}

// unarchiveRunOutcome is the per-store entry in the unarchive run response.
// Error is set when the run never started (unknown store, feature disabled,
// worker construction failure); otherwise the worker result fields are set.
type unarchiveRunOutcome struct {
	Store           string           `json:"store"`
	Success         bool             `json:"success"`
	Error           string           `json:"error,omitempty"`
	TotalUnarchived int              `json:"total_unarchived"`
	CyclesCompleted int              `json:"cycles_completed"`
	StoppedReason   types.StopReason `json:"stopped_reason,omitempty"`
	Message         string           `json:"message,omitempty"`
}

func (s *Server) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		Error(w, r, err)
		return
	}

	results := make([]unarchiveRunOutcome, 0, len(req.StoreNames))
	for _, name := range req.StoreNames {
		outcome := unarchiveRunOutcome{Store: name}

		cfg, err := s.Stores.Get(name)
		switch {
		case err != nil:
			outcome.Error = "store not found"
		case !cfg.UnarchiveEnabled:
			outcome.Error = "unarchive is disabled for this store"
		default:
			runner, err := s.Runners.NewUnarchiveRunner(cfg)
			if err != nil {
				outcome.Error = err.Error()
				break
			}
			res := runner.Run(r.Context())
			outcome.Success = res.Success
			outcome.TotalUnarchived = res.TotalUnarchived
			outcome.CyclesCompleted = res.CyclesCompleted
			outcome.StoppedReason = res.StoppedReason
			outcome.Message = res.Message
		}
		results = append(results, outcome)
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: results})
}

// promotionRunOutcome is the per-store entry in the promotion cleanup
// response.
type promotionRunOutcome struct {
	Store            string   `json:"store"`
	Success          bool     `json:"success"`
	Error            string   `json:"error,omitempty"`
	ProductsRemoved  int      `json:"products_removed"`
	ActionsProcessed int      `json:"actions_processed"`
	Errors           []string `json:"errors,omitempty"`
}

func (s *Server) handlePromotionCleanup(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		Error(w, r, err)
		return
	}

	results := make([]promotionRunOutcome, 0, len(req.StoreNames))
	for _, name := range req.StoreNames {
		outcome := promotionRunOutcome{Store: name}

		cfg, err := s.Stores.Get(name)
		switch {
		case err != nil:
			outcome.Error = "store not found"
		case !cfg.PromotionCleanupEnabled:
			outcome.Error = "promotion cleanup is disabled for this store"
		default:
			runner, err := s.Runners.NewPromotionRunner(cfg)
			if err != nil {
				outcome.Error = err.Error()
				break
			}
			res := runner.Run(r.Context())
			outcome.Success = res.Success
			outcome.ProductsRemoved = res.ProductsRemoved
			outcome.ActionsProcessed = res.ActionsProcessed
			outcome.Errors = res.Errors
		}
		results = append(results, outcome)
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: results})
}
