package template

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository used by tests and as a
// fallback when no database is configured, mirroring the
// workflow/execstore packages' own in-memory repositories.
type MemoryRepository struct {
	mu        sync.Mutex
	templates map[string]*Template
	seq       int
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[string]*Template)}
}

func (m *MemoryRepository) Create(_ context.Context, tenantID string, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("tmpl-%d", m.seq)
	t.TenantID = &tenantID
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, tenantID, id string) (*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || (t.TenantID != nil && *t.TenantID != tenantID && !t.IsPublic) {
		return nil, fmt.Errorf("template not found")
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryRepository) List(_ context.Context, tenantID string, filter TemplateFilter) ([]*Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Template
	for _, t := range m.templates {
		if !(t.TenantID != nil && *t.TenantID == tenantID) && !t.IsPublic {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.SearchQuery != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(filter.SearchQuery)) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) Update(_ context.Context, tenantID, id string, input UpdateTemplateInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || t.TenantID == nil || *t.TenantID != tenantID {
		return fmt.Errorf("template not found")
	}
	if input.Name != "" {
		t.Name = input.Name
	}
	if input.Description != "" {
		t.Description = input.Description
	}
	if input.Category != "" {
		t.Category = input.Category
	}
	if input.Definition != nil {
		t.Definition = input.Definition
	}
	if input.Tags != nil {
		t.Tags = input.Tags
	}
	if input.IsPublic != nil {
		t.IsPublic = *input.IsPublic
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || t.TenantID == nil || *t.TenantID != tenantID {
		return fmt.Errorf("template not found")
	}
	delete(m.templates, id)
	return nil
}

func (m *MemoryRepository) IncrementUsageCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return fmt.Errorf("template not found")
	}
	t.UsageCount++
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
