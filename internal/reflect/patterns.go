package reflect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomwork/loom/internal/template"
	"github.com/loomwork/loom/internal/workflow"
)

// PatternMatch is one candidate pattern Detect found in a workflow
// definition, with a confidence score in [0,1].
type PatternMatch struct {
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
}

// Detect compares def's structural shape (the node types used anywhere
// in the invocation tree, and whether any invocation is a loop) against
// the six built-in patterns (internal/template.GetBuiltinTemplates) and
// scores each by Jaccard similarity of the distinct node-type sets
// (occurrence counts and order are ignored), weighted 0.85, plus 0.15
// when both or neither contain a loop — cheap, explainable, and good enough for "this looks like
// an X" suggestions rather than a guaranteed classification.
func Detect(def workflow.Definition) []PatternMatch {
	shape := shapeOf(def.Workflow)

	out := make([]PatternMatch, 0, 6)
	for _, tmpl := range template.GetBuiltinTemplates() {
		var patternDef workflow.Definition
		if err := json.Unmarshal(tmpl.Definition, &patternDef); err != nil {
			continue
		}
		patternShape := shapeOf(patternDef.Workflow)
		confidence := shapeSimilarity(shape, patternShape)
		if confidence > 0 {
			out = append(out, PatternMatch{Pattern: tmpl.Name, Confidence: confidence})
		}
	}

	sortMatchesDesc(out)
	return out
}

// shape is a structural fingerprint of a workflow sequence: the
// multiset of node types encountered anywhere in the tree, and whether
// any invocation carries a loop marker.
type shape struct {
	types   map[string]int
	hasLoop bool
}

func shapeOf(seq []workflow.NodeInvocation) shape {
	s := shape{types: make(map[string]int)}
	var walk func([]workflow.NodeInvocation)
	walk = func(items []workflow.NodeInvocation) {
		for i := range items {
			inv := items[i]
			s.types[inv.NodeType]++
			if inv.IsLoop {
				s.hasLoop = true
			}
			for _, edgeName := range inv.EdgeNames() {
				target, ok, err := inv.EdgeTarget(edgeName)
				if err != nil || !ok || target == nil {
					continue
				}
				switch t := target.(type) {
				case workflow.NodeInvocation:
					walk([]workflow.NodeInvocation{t})
				case []workflow.NodeInvocation:
					walk(t)
				}
			}
		}
	}
	walk(seq)
	return s
}

func shapeSimilarity(a, b shape) float64 {
	if len(a.types) == 0 || len(b.types) == 0 {
		return 0
	}
	union := make(map[string]bool, len(a.types)+len(b.types))
	intersection := 0
	for t := range a.types {
		union[t] = true
		if _, ok := b.types[t]; ok {
			intersection++
		}
	}
	for t := range b.types {
		union[t] = true
	}
	score := float64(intersection) / float64(len(union))
	if a.hasLoop == b.hasLoop {
		score = score*0.85 + 0.15
	} else {
		score *= 0.85
	}
	return score
}

func sortMatchesDesc(m []PatternMatch) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].Confidence > m[j-1].Confidence; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}

// Generate fills a named pattern's {{placeholder}} markers with the
// provided values and returns a ready-to-run workflow.Definition. A
// placeholder value may be of any JSON type (string, number, bool) — the
// substitution walks the decoded document tree rather than doing a
// textual string replace, so a numeric placeholder like a loop limit
// produces a real JSON number instead of a quoted string the comparing
// node would reject.
func Generate(patternName string, placeholders map[string]interface{}) (workflow.Definition, error) {
	tmpl := template.GetTemplateByName(patternName)
	if tmpl == nil {
		return workflow.Definition{}, fmt.Errorf("reflect: unknown pattern %q", patternName)
	}

	var doc interface{}
	if err := json.Unmarshal(tmpl.Definition, &doc); err != nil {
		return workflow.Definition{}, fmt.Errorf("reflect: parsing pattern %q: %w", patternName, err)
	}

	filled := substitutePlaceholders(doc, placeholders)

	raw, err := json.Marshal(filled)
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("reflect: re-marshaling generated pattern %q: %w", patternName, err)
	}

	var def workflow.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return workflow.Definition{}, fmt.Errorf("reflect: decoding generated pattern %q as a workflow definition: %w", patternName, err)
	}
	return def, nil
}

func substitutePlaceholders(node interface{}, placeholders map[string]interface{}) interface{} {
	switch v := node.(type) {
	case string:
		if name, ok := placeholderName(v); ok {
			if repl, present := placeholders[name]; present {
				return repl
			}
			return v
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = substitutePlaceholders(val, placeholders)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = substitutePlaceholders(val, placeholders)
		}
		return out
	default:
		return v
	}
}

// placeholderName reports whether s is exactly "{{name}}" (not merely
// containing one), returning name with surrounding braces and whitespace
// trimmed.
func placeholderName(s string) (string, bool) {
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", false
	}
	name := strings.TrimSpace(s[2 : len(s)-2])
	if name == "" || strings.ContainsAny(name, "{}") {
		return "", false
	}
	return name, true
}
