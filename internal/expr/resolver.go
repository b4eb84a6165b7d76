// Package expr implements the two-operation expression resolver of §4.C:
// "$.path" reference resolution and "{{$.path}}" template interpolation,
// plus free-form expression evaluation for nodes (math/transform/editFields)
// backed by github.com/expr-lang/expr.
package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loomwork/loom/internal/value"
)

// refPrefix marks a whole-string state reference.
const refPrefix = "$."

// programCache holds compiled expr programs keyed by expression source, so a
// node whose config carries the same expression across many invocations (the
// common case: a workflow re-runs the same math/logic/transform node per
// loop iteration or per execution) compiles it once. expr typechecks against
// a map[string]interface{} env dynamically, so a program compiled against
// one call's env runs fine against the differently-keyed env of the next
// call for the same expression string.
var programCache, _ = lru.New[string, *vm.Program](512)

func compileCached(expression string, env map[string]interface{}) (*vm.Program, error) {
	if program, ok := programCache.Get(expression); ok {
		return program, nil
	}
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, err
	}
	programCache.Add(expression, program)
	return program, nil
}

// placeholderRegex matches {{$.path}} substrings for template interpolation.
var placeholderRegex = regexp.MustCompile(`\{\{\s*(\$\.[^}]+?)\s*\}\}`)

// ResolveRefs walks cfg recursively, replacing any leaf string that is
// exactly "$.<path>" with the value read from state at that path (missing
// -> JSON null). Numbers, bools and non-reference strings pass through
// unchanged. Applied to a node's config immediately before Execute.
func ResolveRefs(cfg interface{}, state value.Object) interface{} {
	switch v := cfg.(type) {
	case string:
		if strings.HasPrefix(v, refPrefix) && refTokenRegex.FindString(v) == v {
			return value.Get(state, strings.TrimPrefix(v, refPrefix))
		}
		return Interpolate(v, state)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = ResolveRefs(val, state)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = ResolveRefs(val, state)
		}
		return out
	default:
		return v
	}
}

// Interpolate replaces every {{$.path}} substring in s with the string
// form of the value resolved at that path. A path that resolves to
// nothing (missing key) leaves the literal placeholder untouched, which
// makes interpolation idempotent across repeated calls (§8 property 7).
func Interpolate(s string, state value.Object) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		sub := placeholderRegex.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		path := strings.TrimPrefix(sub[1], refPrefix)
		resolved := value.Get(state, path)
		if resolved == nil && !hasPath(state, path) {
			return match
		}
		return toDisplayString(resolved)
	})
}

// hasPath distinguishes "path resolves to JSON null" from "path is
// entirely absent" so Interpolate can decide whether to render the
// literal placeholder or the string "null".
func hasPath(root interface{}, path string) bool {
	segments := strings.Split(path, ".")
	cur := root
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		v, present := m[seg]
		if !present {
			return false
		}
		cur = v
	}
	return true
}

func toDisplayString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// EvalExpr compiles and runs a free-form expression (used by the math
// and transform nodes) against state, exposed to the expression as
// the variable `state`, plus top-level fields spread directly into the
// expression environment for ergonomic access (e.g. `a + b`).
func EvalExpr(expression string, state value.Object) (interface{}, error) {
	env := make(map[string]interface{}, len(state)+1)
	for k, v := range state {
		env[k] = v
	}
	env["state"] = state

	program, err := compileCached(expression, env)
	if err != nil {
		return nil, fmt.Errorf("expr: compiling %q: %w", expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("expr: evaluating %q: %w", expression, err)
	}
	return out, nil
}

// refTokenRegex matches bare "$.path" tokens embedded inside a larger
// expression (as opposed to ResolveRefs's whole-string match), e.g. the
// "$.index + 1" value expressions the editFields node evaluates.
var refTokenRegex = regexp.MustCompile(`\$\.[A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*`)

// EvalWithRefs evaluates an expression that embeds "$.path" tokens
// alongside arithmetic/boolean operators (e.g. "$.index + 1"). Each token
// is rewritten to a call into a `get` function bound to state before
// compilation, so expr-lang never has to parse the "$." sigil itself.
func EvalWithRefs(expression string, state value.Object) (interface{}, error) {
	rewritten := refTokenRegex.ReplaceAllStringFunc(expression, func(tok string) string {
		path := strings.TrimPrefix(tok, refPrefix)
		return fmt.Sprintf("get(%q)", path)
	})

	env := map[string]interface{}{
		"state": state,
		"get": func(path string) interface{} {
			return value.Get(state, path)
		},
	}

	program, err := compileCached(rewritten, env)
	if err != nil {
		return nil, fmt.Errorf("expr: compiling %q: %w", expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("expr: evaluating %q: %w", expression, err)
	}
	return out, nil
}
