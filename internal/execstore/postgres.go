package execstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresRepository persists executions and automations through
// *sqlx.DB, issuing Postgres-flavored placeholders as the teacher's
// repositories do. There is no session-level tenant injection (no
// SET LOCAL app.current_tenant_id). Get carries an explicit tenant_id
// predicate and List adds one when a tenant is given; the automation
// queries, CompleteExecution and AppendNodeLog address rows by id (or
// webhook path) alone, with no tenant_id predicate.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps db for execution/automation persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (p *PostgresRepository) CreateExecution(ctx context.Context, rec *ExecutionRecord) error {
	const q = `
		INSERT INTO executions (
			id, workflow_id, tenant_id, status, triggered_by, initial_state,
			node_logs, started_at, automation_id, trigger_source, trigger_data
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := p.db.ExecContext(ctx, q,
		rec.ID, rec.WorkflowID, rec.TenantID, StatusRunning, rec.TriggeredBy, rec.InitialState,
		[]byte("[]"), rec.StartedAt, rec.AutomationID, rec.TriggerSource, rec.TriggerData,
	)
	if err != nil {
		return fmt.Errorf("execstore: creating execution %s: %w", rec.ID, err)
	}
	return nil
}

func (p *PostgresRepository) CompleteExecution(ctx context.Context, id string, status Status, result, finalState, nodeLogs []byte, failedNodeID, errMsg string) error {
	const q = `
		UPDATE executions SET
			status = $2, result = $3, final_state = $4, node_logs = $5,
			failed_node_id = $6, error = $7, completed_at = $8
		WHERE id = $1 AND completed_at IS NULL`
	_, err := p.db.ExecContext(ctx, q, id, status, result, finalState, nodeLogs, failedNodeID, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("execstore: completing execution %s: %w", id, err)
	}
	return nil
}

func (p *PostgresRepository) AppendNodeLog(ctx context.Context, id string, entry []byte) error {
	const q = `
		UPDATE executions SET node_logs = COALESCE(node_logs, '[]'::jsonb) || $2::jsonb
		WHERE id = $1`
	_, err := p.db.ExecContext(ctx, q, id, []byte("[" + string(entry) + "]"))
	if err != nil {
		return fmt.Errorf("execstore: appending node log for %s: %w", id, err)
	}
	return nil
}

func (p *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	const q = `SELECT * FROM executions WHERE id = $1 AND tenant_id = $2`
	if err := p.db.GetContext(ctx, &rec, q, id, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("execstore: getting execution %s: %w", id, err)
	}
	return &rec, nil
}

func (p *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*ExecutionRecord, error) {
	filter = filter.Normalize()

	query := "SELECT * FROM executions WHERE 1=1"
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		query += " AND status = " + arg(filter.Status)
	}
	if filter.WorkflowID != "" {
		query += " AND workflow_id = " + arg(filter.WorkflowID)
	}
	if filter.TenantID != "" {
		query += " AND tenant_id = " + arg(filter.TenantID)
	}
	if !filter.StartDate.IsZero() {
		query += " AND started_at >= " + arg(filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND started_at <= " + arg(filter.EndDate)
	}

	column := "started_at"
	if filter.SortBy == "completedAt" {
		column = "completed_at"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT %s", column, order, arg(filter.PageSize))

	var recs []*ExecutionRecord
	if err := p.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("execstore: listing executions: %w", err)
	}
	return recs, nil
}

func (p *PostgresRepository) Create(ctx context.Context, a *Automation) error {
	const q = `
		INSERT INTO automations (
			id, plugin_id, tenant_id, workflow_id, enabled, trigger_type,
			trigger_config, run_count, success_count, failure_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,0)`
	_, err := p.db.ExecContext(ctx, q, a.ID, a.PluginID, a.TenantID, a.WorkflowID, a.Enabled, a.TriggerType, a.TriggerConfig)
	if err != nil {
		return fmt.Errorf("execstore: creating automation %s: %w", a.ID, err)
	}
	return nil
}

func (p *PostgresRepository) GetAutomation(ctx context.Context, id string) (*Automation, error) {
	var a Automation
	const q = `SELECT * FROM automations WHERE id = $1`
	if err := p.db.GetContext(ctx, &a, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("execstore: getting automation %s: %w", id, err)
	}
	return &a, nil
}

func (p *PostgresRepository) GetByWebhookPath(ctx context.Context, path string) (*Automation, error) {
	var a Automation
	const q = `
		SELECT * FROM automations
		WHERE trigger_type = 'webhook' AND trigger_config->>'webhookUrl' = $1`
	if err := p.db.GetContext(ctx, &a, q, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("execstore: getting automation by webhook path %s: %w", path, err)
	}
	return &a, nil
}

func (p *PostgresRepository) ListEnabledCron(ctx context.Context) ([]*Automation, error) {
	const q = `SELECT * FROM automations WHERE enabled AND trigger_type = 'cron'`
	var out []*Automation
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("execstore: listing enabled cron automations: %w", err)
	}
	return out, nil
}

func (p *PostgresRepository) RecordRun(ctx context.Context, id string, success bool, runAt time.Time, lastError string) error {
	q := `UPDATE automations SET run_count = run_count + 1, last_run_at = $2, last_error = $3`
	if success {
		q += `, success_count = success_count + 1`
	} else {
		q += `, failure_count = failure_count + 1`
	}
	q += ` WHERE id = $1`
	_, err := p.db.ExecContext(ctx, q, id, runAt, lastError)
	if err != nil {
		return fmt.Errorf("execstore: recording run for automation %s: %w", id, err)
	}
	return nil
}

func (p *PostgresRepository) UpdateNextRunAt(ctx context.Context, id string, nextRunAt *time.Time) error {
	const q = `UPDATE automations SET next_run_at = $2 WHERE id = $1`
	_, err := p.db.ExecContext(ctx, q, id, nextRunAt)
	if err != nil {
		return fmt.Errorf("execstore: updating next_run_at for automation %s: %w", id, err)
	}
	return nil
}
