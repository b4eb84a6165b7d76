package reflect

import (
	"fmt"
	"strings"

	"github.com/loomwork/loom/internal/interperrors"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/workflow"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationIssue is one defect found by deep validation, distinguishing
// a hard VALIDATION_ERROR (the interpreter would fail on this) from a
// softer warning the workflow could still run with.
type ValidationIssue struct {
	Path    string            `json:"path"`
	Code    interperrors.Code `json:"code"`
	Message string            `json:"message"`
}

// ValidationResult is Deep Validate's return value, grounded on the
// teacher's DryRunResult shape (internal/workflow/model.go) — Valid plus
// separated errors/warnings — adapted from the teacher's flat
// topological-node-list model to this system's nested invocation tree.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// Validate performs a non-executing deep validation of def (§4.H): it
// checks every declared edge name against the node's own descriptor,
// every "$.path" reference against the state keys known to be available
// at that point in the tree, every sub-flow for a reachable terminal,
// and every node's literal (non-reference) Config values against its
// declared InputSchema.
func Validate(registry *node.Registry, def workflow.Definition) ValidationResult {
	result := ValidationResult{Valid: true}
	known := stateKeys(def.InitialState)

	v := &validator{registry: registry, result: &result}
	v.walkSequence(def.Workflow, "", known, make(map[*workflow.NodeInvocation]bool))

	result.Valid = len(result.Errors) == 0
	return result
}

type validator struct {
	registry *node.Registry
	result   *ValidationResult
}

func (v *validator) fail(path string, code interperrors.Code, format string, args ...interface{}) {
	v.result.Errors = append(v.result.Errors, ValidationIssue{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warn(path string, code interperrors.Code, format string, args ...interface{}) {
	v.result.Warnings = append(v.result.Warnings, ValidationIssue{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) walkSequence(seq []workflow.NodeInvocation, basePath string, known map[string]bool, visiting map[*workflow.NodeInvocation]bool) {
	for i := range seq {
		path := fmt.Sprintf("%d", i)
		if basePath != "" {
			path = fmt.Sprintf("%s.%d", basePath, i)
		}
		v.walkInvocation(&seq[i], path, known, visiting)
	}
}

// walkInvocation validates one invocation and everything reachable
// through its declared edges. known is the set of top-level state keys
// guaranteed to exist by the time this invocation runs; it grows (by
// value, not by reference) as invocations declare new output fields, so
// sibling branches never see each other's hypothetical output.
func (v *validator) walkInvocation(inv *workflow.NodeInvocation, path string, known map[string]bool, visiting map[*workflow.NodeInvocation]bool) {
	desc, _, err := v.registry.ByID(inv.NodeType)
	if err != nil {
		v.fail(path, interperrors.UnknownNode, "unknown node type %q", inv.NodeType)
		return
	}

	v.checkRefs(inv.Config, path, known)
	v.checkSchema(desc, inv.Config, path)

	declared := make(map[string]bool, len(desc.Edges))
	for _, e := range desc.Edges {
		declared[e] = true
	}
	for _, edgeName := range inv.EdgeNames() {
		if !declared[edgeName] {
			v.fail(path, interperrors.ValidationError, "edge %q is not declared by node type %q (declared edges: %v)", edgeName, inv.NodeType, desc.Edges)
		}
	}

	next := withOutputKeys(known, inv)

	if !v.reachesTerminal(inv, visiting, 0) {
		v.warn(path, interperrors.ValidationError, "invocation %q has no reachable terminal edge; a non-loop chain that never nulls out will run forever", inv.NodeType)
	}

	for _, edgeName := range inv.EdgeNames() {
		target, ok, perr := inv.EdgeTarget(edgeName)
		if perr != nil {
			v.fail(path, interperrors.ValidationError, "edge %q: %s", edgeName, perr.Error())
			continue
		}
		if !ok || target == nil {
			continue
		}
		childPath := path + "." + edgeName
		switch t := target.(type) {
		case workflow.NodeInvocation:
			v.walkInvocation(&t, childPath, next, visiting)
		case []workflow.NodeInvocation:
			if len(t) == 0 {
				v.fail(childPath, interperrors.ValidationError, "sub-flow has no nodes")
				continue
			}
			v.walkSequence(t, childPath, next, visiting)
			last := t[len(t)-1]
			if !v.hasAnyTerminalEdge(&last) {
				v.warn(childPath, interperrors.ValidationError, "sub-flow's last node %q declares no terminal (null) edge", last.NodeType)
			}
		}
	}
}

// reachesTerminal reports whether inv's own chain (following only the
// first declared edge, matching the interpreter's tie-break) can bottom
// out at a null edge within a bounded walk. Revisiting the same
// *workflow.NodeInvocation without having reached a terminal means an
// unconditional cycle with no loop marker — reported as a warning, not a
// hard error, since this is a heuristic over one possible edge path, not
// a proof over all of them.
func (v *validator) reachesTerminal(inv *workflow.NodeInvocation, visiting map[*workflow.NodeInvocation]bool, depth int) bool {
	if depth > 64 {
		return false
	}
	if inv.IsLoop {
		return true // a loop's exit is a normal, intentional non-terminating-looking chain
	}
	names := inv.EdgeNames()
	if len(names) == 0 {
		return true // no declared edges at all: the invocation itself is terminal
	}
	if visiting[inv] {
		return false
	}
	visiting[inv] = true
	defer delete(visiting, inv)

	for _, edgeName := range names {
		target, ok, err := inv.EdgeTarget(edgeName)
		if err != nil {
			continue
		}
		if !ok || target == nil {
			return true
		}
		switch t := target.(type) {
		case workflow.NodeInvocation:
			if v.reachesTerminal(&t, visiting, depth+1) {
				return true
			}
		case []workflow.NodeInvocation:
			if len(t) == 0 {
				continue
			}
			if v.reachesTerminal(&t[len(t)-1], visiting, depth+1) {
				return true
			}
		}
	}
	return false
}

func (v *validator) hasAnyTerminalEdge(inv *workflow.NodeInvocation) bool {
	names := inv.EdgeNames()
	if len(names) == 0 {
		return true
	}
	for _, edgeName := range names {
		target, ok, err := inv.EdgeTarget(edgeName)
		if err == nil && ok && target == nil {
			return true
		}
	}
	return false
}

// checkRefs flags a "$.path" reference whose root segment is not among
// known state keys — a REFERENCE_ERROR the interpreter would otherwise
// only discover at run time.
func (v *validator) checkRefs(cfg interface{}, path string, known map[string]bool) {
	switch c := cfg.(type) {
	case string:
		for _, ref := range extractRefs(c) {
			root := strings.SplitN(ref, ".", 2)[0]
			if !known[root] {
				v.fail(path, interperrors.ReferenceError, "reference %q: state key %q is not known to exist at this point", ref, root)
			}
		}
	case map[string]interface{}:
		for _, val := range c {
			v.checkRefs(val, path, known)
		}
	case []interface{}:
		for _, val := range c {
			v.checkRefs(val, path, known)
		}
	}
}

// extractRefs finds every "$.path" token in s, whether s is a whole-string
// reference or an embedded token inside a larger expression/template.
func extractRefs(s string) []string {
	var out []string
	for {
		idx := strings.Index(s, "$.")
		if idx < 0 {
			break
		}
		s = s[idx+2:]
		end := 0
		for end < len(s) && (isPathRune(s[end])) {
			end++
		}
		if end > 0 {
			out = append(out, s[:end])
		}
		s = s[end:]
	}
	return out
}

func isPathRune(b byte) bool {
	return b == '.' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// checkSchema validates the literal values of inv's Config against the node
// type's declared InputSchema using the teacher's JSON-Schema dependency
// (github.com/xeipuuv/gojsonschema), matching the validation-with-errors
// pattern of the pack's own schema-validator node
// (yesoreyeram-thaiyyal/backend/pkg/executor/schema_validator.go):
// "$.path" references aren't resolved yet at this point (that only
// happens at run time against live state), so this checks only literal,
// non-reference config values — it is a best-effort shape check, not a
// guarantee equivalent to validating the resolved runtime config.
func (v *validator) checkSchema(desc node.Descriptor, config map[string]interface{}, path string) {
	if desc.InputSchema == nil {
		return
	}
	literal := stripRefs(config)
	schemaLoader := gojsonschema.NewGoLoader(desc.InputSchema)
	docLoader := gojsonschema.NewGoLoader(literal)

	outcome, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		v.warn(path, interperrors.ValidationError, "could not validate config against input schema: %s", err.Error())
		return
	}
	if outcome.Valid() {
		return
	}
	for _, resultErr := range outcome.Errors() {
		// A missing "required" property is frequently just a value meant
		// to be resolved from state ("$.path") and already stripped by
		// stripRefs above; only report genuinely wrong-shaped literals.
		if resultErr.Type() == "required" {
			continue
		}
		v.warn(path, interperrors.ValidationError, "config field %q: %s", resultErr.Field(), resultErr.Description())
	}
}

// stripRefs removes every "$.path"-valued field from cfg (shallow, one
// level) so schema validation only judges values actually present as
// literals, not references resolved later.
func stripRefs(cfg map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cfg))
	for k, val := range cfg {
		if s, ok := val.(string); ok && strings.HasPrefix(s, "$.") {
			continue
		}
		out[k] = val
	}
	return out
}

func stateKeys(state map[string]interface{}) map[string]bool {
	out := make(map[string]bool, len(state))
	for k := range state {
		out[k] = true
	}
	return out
}

// withOutputKeys returns a new key set seeded from known plus any output
// field names inv's own config declares it will write (outputVariable
// for math/transform, editFields's fields[].path), matching the real,
// tested shape of those builtin nodes (internal/node/builtin).
func withOutputKeys(known map[string]bool, inv *workflow.NodeInvocation) map[string]bool {
	next := make(map[string]bool, len(known)+2)
	for k := range known {
		next[k] = true
	}
	outVar, _ := inv.Config["outputVariable"].(string)
	if outVar == "" {
		switch inv.NodeType {
		case "math":
			outVar = "mathResult"
		case "transform":
			outVar = "transformResult"
		}
	}
	if outVar != "" {
		next[outVar] = true
	}
	if inv.NodeType == "editFields" {
		if fields, ok := inv.Config["fields"].([]interface{}); ok {
			for _, f := range fields {
				if fm, ok := f.(map[string]interface{}); ok {
					if p, ok := fm["path"].(string); ok && p != "" {
						next[strings.SplitN(p, ".", 2)[0]] = true
					}
				}
			}
		}
	}
	return next
}
