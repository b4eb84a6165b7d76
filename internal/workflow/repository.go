package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"database/sql"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by Get/Load when no definition matches the
// requested id (surfaces as WORKFLOW_NOT_FOUND, §7).
var ErrNotFound = errors.New("workflow: definition not found")

// ErrVersionConflict is returned by Put when overwriting a definition
// whose stored version does not match the caller's expected version
// (§7 VERSION_CONFLICT).
var ErrVersionConflict = errors.New("workflow: version conflict")

// Repository persists workflow definitions, keyed by tenant and id.
// internal/schedule.Runner and internal/webhook.Dispatcher both depend
// only on the narrower Loader view of this contract.
type Repository interface {
	Get(ctx context.Context, tenantID, id string) (*Definition, error)
	List(ctx context.Context, tenantID string) ([]*Definition, error)
	Put(ctx context.Context, tenantID string, def *Definition, expectedVersion string) error
}

// Loader is the read-only view schedule.Runner and webhook.Dispatcher
// consume; Repository satisfies it.
type Loader interface {
	Load(ctx context.Context, tenantID, workflowID string) (*Definition, error)
}

// MemoryRepository is an in-process Repository, used by tests and as a
// fallback when no database is configured.
type MemoryRepository struct {
	mu   sync.RWMutex
	defs map[string]*Definition // key: tenantID + "/" + id
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{defs: make(map[string]*Definition)}
}

func memKey(tenantID, id string) string { return tenantID + "/" + id }

func (m *MemoryRepository) Get(_ context.Context, tenantID, id string) (*Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.defs[memKey(tenantID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *def
	return &clone, nil
}

func (m *MemoryRepository) Load(ctx context.Context, tenantID, workflowID string) (*Definition, error) {
	return m.Get(ctx, tenantID, workflowID)
}

func (m *MemoryRepository) List(_ context.Context, tenantID string) ([]*Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Definition
	for key, def := range m.defs {
		if key[:len(tenantID)+1] == tenantID+"/" {
			clone := *def
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MemoryRepository) Put(_ context.Context, tenantID string, def *Definition, expectedVersion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(tenantID, def.ID)
	if existing, ok := m.defs[key]; ok && expectedVersion != "" && existing.Version != expectedVersion {
		return ErrVersionConflict
	}
	clone := *def
	m.defs[key] = &clone
	return nil
}

// PostgresRepository persists workflow definitions as JSON documents,
// following execstore's db:"..." json:"..." double-tagged convention.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps db for workflow definition persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type definitionRow struct {
	ID       string `db:"id"`
	TenantID string `db:"tenant_id"`
	Name     string `db:"name"`
	Version  string `db:"version"`
	Document []byte `db:"document"`
}

func (p *PostgresRepository) Get(ctx context.Context, tenantID, id string) (*Definition, error) {
	var row definitionRow
	const q = `SELECT id, tenant_id, name, version, document FROM workflows WHERE tenant_id = $1 AND id = $2`
	if err := p.db.GetContext(ctx, &row, q, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("workflow: getting definition %s: %w", id, err)
	}
	var def Definition
	if err := json.Unmarshal(row.Document, &def); err != nil {
		return nil, fmt.Errorf("workflow: decoding definition %s: %w", id, err)
	}
	return &def, nil
}

func (p *PostgresRepository) Load(ctx context.Context, tenantID, workflowID string) (*Definition, error) {
	return p.Get(ctx, tenantID, workflowID)
}

func (p *PostgresRepository) List(ctx context.Context, tenantID string) ([]*Definition, error) {
	var rows []definitionRow
	const q = `SELECT id, tenant_id, name, version, document FROM workflows WHERE tenant_id = $1 ORDER BY id`
	if err := p.db.SelectContext(ctx, &rows, q, tenantID); err != nil {
		return nil, fmt.Errorf("workflow: listing definitions: %w", err)
	}
	out := make([]*Definition, 0, len(rows))
	for _, row := range rows {
		var def Definition
		if err := json.Unmarshal(row.Document, &def); err != nil {
			return nil, fmt.Errorf("workflow: decoding definition %s: %w", row.ID, err)
		}
		out = append(out, &def)
	}
	return out, nil
}

func (p *PostgresRepository) Put(ctx context.Context, tenantID string, def *Definition, expectedVersion string) error {
	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("workflow: encoding definition %s: %w", def.ID, err)
	}

	if expectedVersion != "" {
		var current string
		const checkQ = `SELECT version FROM workflows WHERE tenant_id = $1 AND id = $2`
		err := p.db.GetContext(ctx, &current, checkQ, tenantID, def.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// no existing row: nothing to conflict with
		case err != nil:
			return fmt.Errorf("workflow: checking version for %s: %w", def.ID, err)
		case current != expectedVersion:
			return ErrVersionConflict
		}
	}

	const q = `
		INSERT INTO workflows (id, tenant_id, name, version, document)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name, version = EXCLUDED.version, document = EXCLUDED.document`
	if _, err := p.db.ExecContext(ctx, q, def.ID, tenantID, def.Name, def.Version, doc); err != nil {
		return fmt.Errorf("workflow: upserting definition %s: %w", def.ID, err)
	}
	return nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
	_ Loader     = (*MemoryRepository)(nil)
	_ Loader     = (*PostgresRepository)(nil)
)
