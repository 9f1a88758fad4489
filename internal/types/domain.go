// Package types defines the shared domain model for the sellerpilot service:
// store configuration records, worker run results, scheduler status, the
// application error type and the secret wrapper. It has no dependencies on
// other internal packages so every layer can import it freely.
package types

// StoreConfig is one seller account: the marketplace credentials plus the
// per-store automation schedule. Records live in the JSON config file managed
// by the store package; the core never mutates them outside that path.
type StoreConfig struct {
	ID        string       `json:"id,omitempty"`
	Name      string       `json:"name" validate:"required,min=1,max=128"`
	ClientID  string       `json:"client_id" validate:"required"`
	APIKey    SecretString `json:"api_key" validate:"required"`
	IsActive  bool         `json:"is_active"`
	CreatedAt string       `json:"created_at,omitempty"`
	UpdatedAt string       `json:"updated_at,omitempty"`

	// Automation toggles. A schedule time is only meaningful when the
	// matching enabled flag is set; either may be absent.
	PromotionCleanupEnabled bool   `json:"remove_from_promotions"`
	UnarchiveEnabled        bool   `json:"unarchive_enabled"`
	PromotionCleanupTime    string `json:"promotion_cleanup_time,omitempty" validate:"omitempty,schedule_time"`
	UnarchiveTime           string `json:"unarchive_time,omitempty" validate:"omitempty,schedule_time"`
}

// JobKind distinguishes the two scheduled operations a store can carry.
type JobKind string

const (
	JobKindPromotion JobKind = "promotion"
	JobKindUnarchive JobKind = "unarchive"
)

// StopReason is the terminal state of an unarchive run.
type StopReason string

const (
	StopAutoArchiveEmpty  StopReason = "autoarchive_empty"
	StopDailyLimitReached StopReason = "daily_limit_reached"
	StopAccessDenied      StopReason = "access_denied"
)

// UnarchiveResult is the terminal value of one unarchive drain run.
// Both autoarchive_empty and daily_limit_reached are reported as success:
// they mean "nothing more to do right now", not failure. Only access_denied
// marks the run as failed.
type UnarchiveResult struct {
	Success         bool       `json:"success"`
	TotalUnarchived int        `json:"total_unarchived"`
	CyclesCompleted int        `json:"cycles_completed"`
	StoppedReason   StopReason `json:"stopped_reason"`
	Message         string     `json:"message"`
}

// PromotionResult is the terminal value of one promotion cleanup pass.
type PromotionResult struct {
	Success          bool     `json:"success"`
	ProductsRemoved  int      `json:"products_removed"`
	ActionsProcessed int      `json:"actions_processed"`
	Errors           []string `json:"errors"`
}

// SchedulerStatus is the read-only scheduler snapshot exposed over the API.
type SchedulerStatus struct {
	IsRunning bool     `json:"is_running"`
	JobCount  int      `json:"job_count"`
	JobIDs    []string `json:"job_ids"`
}
