package execstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no execution matches id.
var ErrNotFound = errors.New("execstore: execution not found")

// ListFilter narrows List results. Zero-valued fields are unfiltered.
type ListFilter struct {
	Status     Status
	WorkflowID string
	TenantID   string
	StartDate  time.Time
	EndDate    time.Time

	// PageSize is clamped to [1, 100] (default 50) per §6.
	PageSize int
	// SortBy is "startTime" (default) or "completedAt".
	SortBy string
	// SortOrder is "asc" or "desc" (default).
	SortOrder string
}

// Normalize clamps PageSize/SortBy/SortOrder to the documented defaults
// and bounds (§6 execution listing surface).
func (f ListFilter) Normalize() ListFilter {
	out := f
	if out.PageSize <= 0 {
		out.PageSize = 50
	}
	if out.PageSize > 100 {
		out.PageSize = 100
	}
	if out.SortBy != "startTime" && out.SortBy != "completedAt" {
		out.SortBy = "startTime"
	}
	if out.SortOrder != "asc" && out.SortOrder != "desc" {
		out.SortOrder = "desc"
	}
	return out
}

// Repository is the Execution Repository's storage contract (§4.E),
// implemented by both MemoryRepository (tests) and PostgresRepository.
type Repository interface {
	CreateExecution(ctx context.Context, rec *ExecutionRecord) error
	// CompleteExecution is idempotent: a second call for the same id is
	// a no-op (§7 policy).
	CompleteExecution(ctx context.Context, id string, status Status, result, finalState, nodeLogs []byte, failedNodeID, errMsg string) error
	AppendNodeLog(ctx context.Context, id string, entry []byte) error
	// Get scopes the lookup to tenantID; a row belonging to another
	// tenant is indistinguishable from a missing one (§1 isolation).
	Get(ctx context.Context, tenantID, id string) (*ExecutionRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*ExecutionRecord, error)
}

// AutomationRepository is the Automation persistence contract
// ([EXPANDED] §4.E).
type AutomationRepository interface {
	Create(ctx context.Context, a *Automation) error
	GetAutomation(ctx context.Context, id string) (*Automation, error)
	GetByWebhookPath(ctx context.Context, path string) (*Automation, error)
	ListEnabledCron(ctx context.Context) ([]*Automation, error)
	// RecordRun atomically updates run counters and lastRunAt/lastError,
	// enforcing successCount + failureCount <= runCount (§3 invariant).
	RecordRun(ctx context.Context, id string, success bool, runAt time.Time, lastError string) error
	UpdateNextRunAt(ctx context.Context, id string, nextRunAt *time.Time) error
}
