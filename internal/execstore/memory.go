package execstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository + AutomationRepository
// implementation used by component tests that don't need a real
// database (the scheduler and webhook dispatcher test suites run
// against this rather than sqlmock).
type MemoryRepository struct {
	mu          sync.Mutex
	executions  map[string]*ExecutionRecord
	automations map[string]*Automation
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		executions:  make(map[string]*ExecutionRecord),
		automations: make(map[string]*Automation),
	}
}

func (m *MemoryRepository) CreateExecution(_ context.Context, rec *ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.executions[rec.ID] = &cp
	return nil
}

func (m *MemoryRepository) CompleteExecution(_ context.Context, id string, status Status, result, finalState, nodeLogs []byte, failedNodeID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.executions[id]
	if !ok {
		return ErrNotFound
	}
	if rec.CompletedAt != nil {
		return nil // idempotent: already completed
	}
	now := time.Now()
	rec.Status = status
	rec.Result = result
	rec.FinalState = finalState
	rec.NodeLogs = nodeLogs
	rec.FailedNodeID = failedNodeID
	rec.Error = errMsg
	rec.CompletedAt = &now
	return nil
}

func (m *MemoryRepository) AppendNodeLog(_ context.Context, id string, entry []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.executions[id]
	if !ok {
		return ErrNotFound
	}
	if len(rec.NodeLogs) == 0 {
		rec.NodeLogs = append([]byte(nil), '[')
		rec.NodeLogs = append(rec.NodeLogs, entry...)
		rec.NodeLogs = append(rec.NodeLogs, ']')
		return nil
	}
	body := rec.NodeLogs[:len(rec.NodeLogs)-1]
	merged := append([]byte(nil), body...)
	merged = append(merged, ',')
	merged = append(merged, entry...)
	merged = append(merged, ']')
	rec.NodeLogs = merged
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, tenantID, id string) (*ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.executions[id]
	if !ok || rec.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryRepository) List(_ context.Context, filter ListFilter) ([]*ExecutionRecord, error) {
	filter = filter.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*ExecutionRecord
	for _, rec := range m.executions {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.WorkflowID != "" && rec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.TenantID != "" && rec.TenantID != filter.TenantID {
			continue
		}
		if !filter.StartDate.IsZero() && rec.StartedAt.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && rec.StartedAt.After(filter.EndDate) {
			continue
		}
		cp := *rec
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "completedAt":
			ti, tj := completedOrZero(matched[i]), completedOrZero(matched[j])
			less = ti.Before(tj)
		default:
			less = matched[i].StartedAt.Before(matched[j].StartedAt)
		}
		if filter.SortOrder == "asc" {
			return less
		}
		return !less
	})

	if len(matched) > filter.PageSize {
		matched = matched[:filter.PageSize]
	}
	return matched, nil
}

func completedOrZero(rec *ExecutionRecord) time.Time {
	if rec.CompletedAt == nil {
		return time.Time{}
	}
	return *rec.CompletedAt
}

func (m *MemoryRepository) Create(_ context.Context, a *Automation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.automations[a.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetAutomation(_ context.Context, id string) (*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.automations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) GetByWebhookPath(_ context.Context, path string) (*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.automations {
		if a.TriggerType != "webhook" {
			continue
		}
		var cfg struct {
			WebhookURL string `json:"webhookUrl"`
		}
		if err := decodeJSON(a.TriggerConfig, &cfg); err != nil {
			continue
		}
		if cfg.WebhookURL == path {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) ListEnabledCron(_ context.Context) ([]*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Automation
	for _, a := range m.automations {
		if a.Enabled && a.TriggerType == "cron" {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRepository) RecordRun(_ context.Context, id string, success bool, runAt time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.automations[id]
	if !ok {
		return ErrNotFound
	}
	a.RunCount++
	if success {
		a.SuccessCount++
	} else {
		a.FailureCount++
		a.LastError = lastError
	}
	a.LastRunAt = &runAt
	return nil
}

func (m *MemoryRepository) UpdateNextRunAt(_ context.Context, id string, nextRunAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.automations[id]
	if !ok {
		return ErrNotFound
	}
	a.NextRunAt = nextRunAt
	return nil
}
