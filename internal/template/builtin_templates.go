package template

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GetBuiltinTemplates returns the built-in workflow pattern library (§4.H
// Pattern library): named, parameterizable control-flow shapes expressed as
// workflow definitions in loom's own single-key node-invocation form, not
// the teacher's node/edge graph shape — the pattern library here detects
// and generates the spec's workflow.Definition documents directly.
func GetBuiltinTemplates() []*Template {
	now := time.Now()
	return []*Template{
		etlPipelineTemplate(now),
		conditionalBranchingTemplate(now),
		counterLoopTemplate(now),
		aiPipelineTemplate(now),
		errorHandlingTemplate(now),
		parallelSplitAggregateTemplate(now),
	}
}

// GetTemplateByName returns a template by name, or nil if not found.
func GetTemplateByName(name string) *Template {
	for _, tmpl := range GetBuiltinTemplates() {
		if tmpl.Name == name {
			return tmpl
		}
	}
	return nil
}

// GetTemplatesByCategory returns all templates in a category.
func GetTemplatesByCategory(category string) []*Template {
	result := make([]*Template, 0)
	for _, tmpl := range GetBuiltinTemplates() {
		if tmpl.Category == category {
			result = append(result, tmpl)
		}
	}
	return result
}

// GetTemplatesByTag returns all templates with a specific tag.
func GetTemplatesByTag(tag string) []*Template {
	result := make([]*Template, 0)
	for _, tmpl := range GetBuiltinTemplates() {
		for _, t := range tmpl.Tags {
			if t == tag {
				result = append(result, tmpl)
				break
			}
		}
	}
	return result
}

// def builds a canonical workflow.Definition-shaped JSON document for a
// pattern template. Placeholder config values use {{name}} markup,
// substituted by the reflection package's pattern generator — distinct
// from the runtime's own {{$.path}} state templates (§4.C).
func def(id, name string, initialState map[string]interface{}, workflow []map[string]interface{}) json.RawMessage {
	doc := map[string]interface{}{
		"id":           id,
		"name":         name,
		"version":      "1.0.0",
		"initialState": initialState,
		"workflow":     workflow,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}

func etlPipelineTemplate(now time.Time) *Template {
	definition := def("pattern-etl-pipeline", "ETL Pipeline", map[string]interface{}{
		"sourceUrl": "{{sourceUrl}}",
	}, []map[string]interface{}{
		{"httpRequest": map[string]interface{}{
			"method": "GET",
			"url":    "$.sourceUrl",
			"success?": map[string]interface{}{
				"transform": map[string]interface{}{
					"expression": "{{transformExpression}}",
					"success?": map[string]interface{}{
						"httpRequest": map[string]interface{}{
							"method":   "POST",
							"url":      "{{destinationUrl}}",
							"body":     "$.transformed",
							"success?": nil,
							"error?":   nil,
						},
					},
					"error?": nil,
				},
			},
			"error?": nil,
		}},
	})

	return &Template{
		Name:        "ETL Pipeline",
		Description: "Extracts records from an HTTP source, transforms them with an expression, and loads the result into a destination endpoint.",
		Category:    string(CategoryDataOps),
		Definition:  definition,
		Tags:        []string{"etl", "extract", "transform", "load", "dataops"},
		IsPublic:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func conditionalBranchingTemplate(now time.Time) *Template {
	definition := def("pattern-conditional-branching", "Conditional Branching", map[string]interface{}{
		"value": "{{value}}",
	}, []map[string]interface{}{
		{"logic": map[string]interface{}{
			"operator": "{{comparison}}",
			"left":     "$.value",
			"right":    "{{threshold}}",
			"true?": map[string]interface{}{
				"log": map[string]interface{}{"message": "{{trueMessage}}"},
			},
			"false?": map[string]interface{}{
				"log": map[string]interface{}{"message": "{{falseMessage}}"},
			},
		}},
	})

	return &Template{
		Name:        "Conditional Branching",
		Description: "Evaluates a comparison against state and follows one of two branches depending on the outcome.",
		Category:    string(CategoryIntegration),
		Definition:  definition,
		Tags:        []string{"conditional", "branching", "logic"},
		IsPublic:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func counterLoopTemplate(now time.Time) *Template {
	definition := def("pattern-counter-loop", "Counter Loop", map[string]interface{}{
		"index": float64(0),
	}, []map[string]interface{}{
		{"logic...": map[string]interface{}{
			"operator": "lt",
			"left":     "$.index",
			"right":    "{{limit}}",
			"true?": []interface{}{
				map[string]interface{}{"log": map[string]interface{}{"message": "{{iterationMessage}}"}},
				map[string]interface{}{"editFields": map[string]interface{}{
					"fields": []interface{}{
						map[string]interface{}{"path": "index", "value": "$.index + 1"},
					},
				}},
			},
			"false?": nil,
		}},
	})

	return &Template{
		Name:        "Counter Loop",
		Description: "Re-enters a loop node while a counter stays below a limit, incrementing the counter each iteration.",
		Category:    string(CategoryIntegration),
		Definition:  definition,
		Tags:        []string{"loop", "counter", "iteration"},
		IsPublic:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func aiPipelineTemplate(now time.Time) *Template {
	definition := def("pattern-ai-pipeline", "AI Pipeline", map[string]interface{}{
		"prompt": "{{prompt}}",
	}, []map[string]interface{}{
		{"httpRequest": map[string]interface{}{
			"method": "POST",
			"url":    "{{modelEndpoint}}",
			"body":   map[string]interface{}{"prompt": "$.prompt"},
			"success?": map[string]interface{}{
				"transform": map[string]interface{}{
					"expression": "{{postProcessExpression}}",
					"success?":   nil,
					"error?":     nil,
				},
			},
			"error?": nil,
		}},
	})

	return &Template{
		Name:        "AI Pipeline",
		Description: "Calls an AI model endpoint and post-processes its response with a transform step.",
		Category:    string(CategoryIntegration),
		Definition:  definition,
		Tags:        []string{"ai", "llm", "pipeline"},
		IsPublic:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func errorHandlingTemplate(now time.Time) *Template {
	definition := def("pattern-error-handling", "Error Handling", map[string]interface{}{
		"targetUrl": "{{targetUrl}}",
	}, []map[string]interface{}{
		{"httpRequest": map[string]interface{}{
			"method": "{{method}}",
			"url":    "$.targetUrl",
			"success?": map[string]interface{}{
				"log": map[string]interface{}{"message": "{{successMessage}}"},
			},
			"error?": map[string]interface{}{
				"log": map[string]interface{}{"message": "{{errorMessage}}"},
			},
		}},
	})

	return &Template{
		Name:        "Error Handling",
		Description: "Wraps a potentially failing action with distinct success and error edges so failure is a handled outcome, not a fatal exception.",
		Category:    string(CategoryMonitoring),
		Definition:  definition,
		Tags:        []string{"error", "handling", "resilience"},
		IsPublic:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func parallelSplitAggregateTemplate(now time.Time) *Template {
	definition := def("pattern-parallel-split-aggregate", "Parallel Split / Aggregate", map[string]interface{}{
		"itemsUrl": "{{itemsUrl}}",
	}, []map[string]interface{}{
		{"httpRequest": map[string]interface{}{
			"method": "GET",
			"url":    "$.itemsUrl",
			"success?": []interface{}{
				map[string]interface{}{"httpRequest#a": map[string]interface{}{
					"method":   "GET",
					"url":      "{{branchAUrl}}",
					"success?": nil,
					"error?":   nil,
				}},
				map[string]interface{}{"httpRequest#b": map[string]interface{}{
					"method":   "GET",
					"url":      "{{branchBUrl}}",
					"success?": nil,
					"error?":   nil,
				}},
				map[string]interface{}{"editFields": map[string]interface{}{
					"fields": []interface{}{
						map[string]interface{}{"path": "aggregated", "value": true},
					},
				}},
			},
			"error?": nil,
		}},
	})

	return &Template{
		Name:        "Parallel Split / Aggregate",
		Description: "Fans a sub-flow out into independent branches that each run to completion, then folds their results back into one aggregated state field. The interpreter itself runs branches of a sub-flow sequentially (§5: no cross-node parallelism within a run); this pattern models the fan-out/fan-in shape, not concurrent execution.",
		Category:    string(CategoryDataOps),
		Definition:  definition,
		Tags:        []string{"parallel", "split", "aggregate", "fan-out"},
		IsPublic:    true,
		CreatedBy:   "system",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SeedBuiltinTemplates seeds built-in templates into the database for a tenant.
func SeedBuiltinTemplates(service *Service, tenantID string) error {
	templates := GetBuiltinTemplates()
	ctx := context.Background()

	for _, tmpl := range templates {
		input := CreateTemplateInput{
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Category:    tmpl.Category,
			Definition:  tmpl.Definition,
			Tags:        tmpl.Tags,
			IsPublic:    tmpl.IsPublic,
		}

		_, err := service.CreateTemplate(ctx, tenantID, "system", input)
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("failed to seed template %s: %w", tmpl.Name, err)
		}
	}

	return nil
}
