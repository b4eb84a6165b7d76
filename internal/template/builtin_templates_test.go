package template

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuiltinTemplates(t *testing.T) {
	templates := GetBuiltinTemplates()

	assert.Len(t, templates, 6, "should have exactly the six named patterns of §4.H")

	for _, tmpl := range templates {
		assert.NotEmpty(t, tmpl.Name, "template should have a name")
		assert.NotEmpty(t, tmpl.Description, "template should have a description")
		assert.NotEmpty(t, tmpl.Category, "template should have a category")
		assert.NotEmpty(t, tmpl.Tags, "template should have tags")
		assert.NotEmpty(t, tmpl.Definition, "template should have a definition")
		assert.True(t, tmpl.IsPublic, "built-in templates should be public")
		assert.Nil(t, tmpl.TenantID, "built-in templates should not have tenant_id")
		assert.Equal(t, "system", tmpl.CreatedBy, "built-in templates should be created by system")

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(tmpl.Definition, &doc), "definition should be valid JSON")
		assert.Contains(t, doc, "workflow", "definition should be a workflow.Definition document")
		assert.Contains(t, doc, "initialState")
	}
}

func TestGetTemplateByName(t *testing.T) {
	t.Run("existing template", func(t *testing.T) {
		tmpl := GetTemplateByName("ETL Pipeline")
		require.NotNil(t, tmpl, "should find existing template")
		assert.Equal(t, "ETL Pipeline", tmpl.Name)
	})

	t.Run("non-existing template", func(t *testing.T) {
		tmpl := GetTemplateByName("Non Existing Template")
		assert.Nil(t, tmpl, "should return nil for non-existing template")
	})
}

func TestGetTemplatesByCategory(t *testing.T) {
	t.Run("dataops category", func(t *testing.T) {
		templates := GetTemplatesByCategory(string(CategoryDataOps))
		assert.NotEmpty(t, templates)
		for _, tmpl := range templates {
			assert.Equal(t, string(CategoryDataOps), tmpl.Category)
		}
	})

	t.Run("non-existing category", func(t *testing.T) {
		templates := GetTemplatesByCategory("non-existing")
		assert.Empty(t, templates, "should return empty array for non-existing category")
	})
}

func TestGetTemplatesByTag(t *testing.T) {
	t.Run("loop tag", func(t *testing.T) {
		templates := GetTemplatesByTag("loop")
		assert.NotEmpty(t, templates)
		for _, tmpl := range templates {
			assert.Contains(t, tmpl.Tags, "loop")
		}
	})

	t.Run("non-existing tag", func(t *testing.T) {
		templates := GetTemplatesByTag("non-existing-tag-xyz")
		assert.Empty(t, templates)
	})
}

func TestCounterLoopTemplateShape(t *testing.T) {
	tmpl := GetTemplateByName("Counter Loop")
	require.NotNil(t, tmpl)

	var doc struct {
		Workflow []map[string]json.RawMessage `json:"workflow"`
	}
	require.NoError(t, json.Unmarshal(tmpl.Definition, &doc))
	require.Len(t, doc.Workflow, 1)

	_, hasLoopKey := doc.Workflow[0]["logic..."]
	assert.True(t, hasLoopKey, "the single invocation key should carry the loop marker")
}

func TestSeedBuiltinTemplates(t *testing.T) {
	mockRepo := &mockTemplateRepository{templates: make(map[string]*Template)}
	service := NewService(mockRepo, slog.Default())

	require.NoError(t, SeedBuiltinTemplates(service, "test-tenant"))

	templates := GetBuiltinTemplates()
	assert.Len(t, mockRepo.templates, len(templates))

	for _, originalTmpl := range templates {
		storedTmpl, exists := mockRepo.templates[originalTmpl.Name]
		require.True(t, exists, "template %s should be stored", originalTmpl.Name)
		assert.Equal(t, originalTmpl.Name, storedTmpl.Name)
		assert.Equal(t, originalTmpl.Category, storedTmpl.Category)
		assert.Equal(t, "system", storedTmpl.CreatedBy)
	}
}

func TestSeedBuiltinTemplates_SkipsExisting(t *testing.T) {
	mockRepo := &mockTemplateRepository{templates: make(map[string]*Template)}
	service := NewService(mockRepo, slog.Default())

	require.NoError(t, SeedBuiltinTemplates(service, "test-tenant"))
	originalCount := len(mockRepo.templates)

	require.NoError(t, SeedBuiltinTemplates(service, "test-tenant"))
	assert.Equal(t, originalCount, len(mockRepo.templates), "should not create duplicates")
}

// mockTemplateRepository is a minimal in-memory Repository for seeding tests.
type mockTemplateRepository struct {
	templates map[string]*Template
}

func (m *mockTemplateRepository) Create(ctx context.Context, tenantID string, template *Template) error {
	if _, exists := m.templates[template.Name]; exists {
		return fmt.Errorf("template with name %s already exists", template.Name)
	}
	if template.ID == "" {
		template.ID = "tmpl-" + template.Name
	}
	m.templates[template.Name] = template
	return nil
}

func (m *mockTemplateRepository) GetByID(ctx context.Context, tenantID, id string) (*Template, error) {
	for _, tmpl := range m.templates {
		if tmpl.ID == id {
			return tmpl, nil
		}
	}
	return nil, fmt.Errorf("template not found")
}

func (m *mockTemplateRepository) List(ctx context.Context, tenantID string, filter TemplateFilter) ([]*Template, error) {
	result := make([]*Template, 0, len(m.templates))
	for _, tmpl := range m.templates {
		result = append(result, tmpl)
	}
	return result, nil
}

func (m *mockTemplateRepository) Update(ctx context.Context, tenantID, id string, input UpdateTemplateInput) error {
	for _, tmpl := range m.templates {
		if tmpl.ID == id {
			if input.Name != "" {
				delete(m.templates, tmpl.Name)
				tmpl.Name = input.Name
				m.templates[tmpl.Name] = tmpl
			}
			return nil
		}
	}
	return fmt.Errorf("template not found")
}

func (m *mockTemplateRepository) Delete(ctx context.Context, tenantID, id string) error {
	for name, tmpl := range m.templates {
		if tmpl.ID == id {
			delete(m.templates, name)
			return nil
		}
	}
	return fmt.Errorf("template not found")
}

func (m *mockTemplateRepository) IncrementUsageCount(ctx context.Context, id string) error {
	for _, tmpl := range m.templates {
		if tmpl.ID == id {
			tmpl.UsageCount++
			return nil
		}
	}
	return fmt.Errorf("template not found")
}
