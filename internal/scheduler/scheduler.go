// Package scheduler owns the recurring per-store triggers. Each store carries
// up to two daily jobs, one per operation kind, firing at a fixed local time
// in the configured business timezone. The scheduler only registers triggers
// and hands fired jobs to the workers; it never blocks on a running job and
// never persists run history.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sellerpilot/internal/types"
)

// DefaultTimezone is the business timezone used when none is configured.
// The provider's daily quotas reset on this clock.
const DefaultTimezone = "Europe/Moscow"

// UnarchiveRunner runs one auto-archive drain to completion.
type UnarchiveRunner interface {
	Run(ctx context.Context) *types.UnarchiveResult
}

// PromotionRunner runs one promotion cleanup pass to completion.
type PromotionRunner interface {
	Run(ctx context.Context) *types.PromotionResult
}

// Config holds the scheduler dependencies. The runner factories build a fresh
// worker per firing so each run starts with clean per-run state (notably the
// client's quota-error memory).
type Config struct {
	Timezone           string // IANA name; defaults to DefaultTimezone
	Logger             *slog.Logger
	NewUnarchiveRunner func(store types.StoreConfig) (UnarchiveRunner, error)
	NewPromotionRunner func(store types.StoreConfig) (PromotionRunner, error)
}

// Scheduler is the trigger registry. Jobs are keyed "{kind}:{storeName}";
// the two kinds for one store are fully independent triggers and may run
// concurrently. They share the store's rate-limit window but touch disjoint
// marketplace resources, so no mutual exclusion is imposed between them.
type Scheduler struct {
	logger       *slog.Logger
	location     *time.Location
	newUnarchive func(store types.StoreConfig) (UnarchiveRunner, error)
	newPromotion func(store types.StoreConfig) (PromotionRunner, error)

	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]cron.EntryID
	running bool

	// runCtx is cancelled on Stop so in-flight workers can wind down.
	runCtx context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. Fails only on an unknown timezone name.
func New(cfg Config) (*Scheduler, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading scheduler timezone %q: %w", tz, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		logger:       logger,
		location:     location,
		newUnarchive: cfg.NewUnarchiveRunner,
		newPromotion: cfg.NewPromotionRunner,
		cron:         cron.New(cron.WithLocation(location)),
		jobs:         make(map[string]cron.EntryID),
	}, nil
}

// Start begins firing registered triggers. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler already running")
		return
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", slog.String("timezone", s.location.String()))
}

// Stop cancels every registered trigger, clears the registry and signals
// in-flight workers to wind down. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.logger.Warn("scheduler is not running")
		return
	}
	for jobID, entryID := range s.jobs {
		s.cron.Remove(entryID)
		s.logger.Info("removed scheduled job", slog.String("job_id", jobID))
	}
	s.jobs = make(map[string]cron.EntryID)
	s.cron.Stop()
	s.cancel()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// ReloadStoreSchedule replaces the triggers for one store. Teardown always
// happens first: existing jobs of both kinds are removed unconditionally,
// then each enabled kind is re-registered from the current config. A kind
// whose schedule time fails to parse therefore ends up with no job at all;
// destructive-before-constructive is the contract, and a partial failure
// leaves that kind unscheduled rather than keeping a stale trigger.
func (s *Scheduler) ReloadStoreSchedule(store types.StoreConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeStoreJobs(store.Name)

	if store.PromotionCleanupEnabled && store.PromotionCleanupTime != "" {
		s.registerJob(types.JobKindPromotion, store, store.PromotionCleanupTime, s.promotionJob(store))
	}
	if store.UnarchiveEnabled && store.UnarchiveTime != "" {
		s.registerJob(types.JobKindUnarchive, store, store.UnarchiveTime, s.unarchiveJob(store))
	}

	s.logger.Info("store schedule reloaded", slog.String("store", store.Name))
}

// RemoveStoreJobs drops every trigger for the store, e.g. when the store is
// deleted.
func (s *Scheduler) RemoveStoreJobs(storeName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeStoreJobs(storeName)
}

// removeStoreJobs removes both kinds for storeName. Caller holds s.mu.
func (s *Scheduler) removeStoreJobs(storeName string) {
	for _, kind := range []types.JobKind{types.JobKindPromotion, types.JobKindUnarchive} {
		jobID := jobID(kind, storeName)
		if entryID, ok := s.jobs[jobID]; ok {
			s.cron.Remove(entryID)
			delete(s.jobs, jobID)
			s.logger.Info("removed scheduled job", slog.String("job_id", jobID))
		}
	}
}

// registerJob parses the schedule time and adds the trigger. An invalid time
// is logged and the kind stays unscheduled; the scheduler itself keeps going.
// Caller holds s.mu.
func (s *Scheduler) registerJob(kind types.JobKind, store types.StoreConfig, at string, job func()) {
	spec, err := parseTimeToCron(at)
	if err != nil {
		s.logger.Error("invalid schedule time, job not registered",
			slog.String("store", store.Name),
			slog.String("kind", string(kind)),
			slog.String("time", at),
			slog.String("error", err.Error()),
		)
		return
	}

	entryID, err := s.cron.AddFunc(spec, job)
	if err != nil {
		s.logger.Error("failed to register trigger",
			slog.String("store", store.Name),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	id := jobID(kind, store.Name)
	s.jobs[id] = entryID
	s.logger.Info("scheduled job",
		slog.String("job_id", id),
		slog.String("at", at),
		slog.String("timezone", s.location.String()),
	)
}

// Status returns a read-only snapshot of the registry.
func (s *Scheduler) Status() types.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return types.SchedulerStatus{
		IsRunning: s.running,
		JobCount:  len(s.jobs),
		JobIDs:    ids,
	}
}

// unarchiveJob builds the fired closure for one store's drain trigger. The
// result is logged and discarded; a panicking or failing worker never touches
// any other store's jobs.
func (s *Scheduler) unarchiveJob(store types.StoreConfig) func() {
	return func() {
		defer s.recoverJob(types.JobKindUnarchive, store.Name)

		s.logger.Info("unarchive trigger fired", slog.String("store", store.Name))
		runner, err := s.newUnarchive(store)
		if err != nil {
			s.logger.Error("failed to build unarchive worker",
				slog.String("store", store.Name),
				slog.String("error", err.Error()),
			)
			return
		}

		result := runner.Run(s.jobContext())
		if result.Success {
			s.logger.Info("unarchive run finished",
				slog.String("store", store.Name),
				slog.Int("total_unarchived", result.TotalUnarchived),
				slog.Int("cycles", result.CyclesCompleted),
				slog.String("stopped_reason", string(result.StoppedReason)),
			)
		} else {
			s.logger.Error("unarchive run failed",
				slog.String("store", store.Name),
				slog.String("stopped_reason", string(result.StoppedReason)),
				slog.String("message", result.Message),
			)
		}
	}
}

// promotionJob builds the fired closure for one store's cleanup trigger.
func (s *Scheduler) promotionJob(store types.StoreConfig) func() {
	return func() {
		defer s.recoverJob(types.JobKindPromotion, store.Name)

		s.logger.Info("promotion cleanup trigger fired", slog.String("store", store.Name))
		runner, err := s.newPromotion(store)
		if err != nil {
			s.logger.Error("failed to build promotion worker",
				slog.String("store", store.Name),
				slog.String("error", err.Error()),
			)
			return
		}

		result := runner.Run(s.jobContext())
		if result.Success {
			s.logger.Info("promotion cleanup finished",
				slog.String("store", store.Name),
				slog.Int("products_removed", result.ProductsRemoved),
				slog.Int("actions_processed", result.ActionsProcessed),
			)
		} else {
			s.logger.Error("promotion cleanup failed",
				slog.String("store", store.Name),
				slog.String("errors", strings.Join(result.Errors, "; ")),
			)
		}
	}
}

// jobContext returns the context workers run under: cancelled on Stop, or
// background when the scheduler was never started (one-off manual firing).
func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

// recoverJob isolates a panicking job; one store's failure must not stop the
// scheduler or any other store's triggers.
func (s *Scheduler) recoverJob(kind types.JobKind, storeName string) {
	if r := recover(); r != nil {
		s.logger.Error("panic in scheduled job",
			slog.String("job_id", jobID(kind, storeName)),
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())),
		)
	}
}

func jobID(kind types.JobKind, storeName string) string {
	return fmt.Sprintf("%s:%s", kind, storeName)
}

// parseTimeToCron converts "HH:MM" into a daily five-field cron spec.
func parseTimeToCron(at string) (string, error) {
	parts := strings.Split(at, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", at)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid hours in %q: %w", at, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid minutes in %q: %w", at, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return "", fmt.Errorf("time %q out of range, expected 00:00-23:59", at)
	}
	return fmt.Sprintf("%d %d * * *", minutes, hours), nil
}
