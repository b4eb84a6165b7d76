// Package value implements the dynamic, JSON-shaped data that backs
// workflow execution state: objects, arrays, strings, numbers, bools and
// null, addressed by dot-separated paths such as "user.name" or
// "items.0.id".
package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Object is the root shape of execution state: a mutable, JSON-keyed map.
// Values held in it are one of nil, bool, float64/json.Number, string,
// []interface{} or map[string]interface{} — exactly what encoding/json
// produces, so state round-trips through persistence without conversion.
type Object = map[string]interface{}

// Clone deep-copies a value tree via a JSON round-trip. It is used before
// every node invocation to produce stateBefore/stateAfter snapshots that
// cannot alias the live execution state.
func Clone(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// CloneObject is Clone specialized to the root Object shape.
func CloneObject(o Object) Object {
	if o == nil {
		return Object{}
	}
	cloned, _ := Clone(o).(Object)
	if cloned == nil {
		return Object{}
	}
	return cloned
}

// splitPath breaks "a.b.0.c" into ["a","b","0","c"]. A leading "$." is
// stripped by callers before this is invoked.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get resolves a dot-separated path against root, returning nil if any
// segment is missing. Numeric segments index into arrays positionally.
func Get(root interface{}, path string) interface{} {
	segments := splitPath(path)
	cur := root
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// Set writes val at the dot-separated path under root, creating
// intermediate objects as needed. Array segments must already exist
// (paths that create state do so through objects; arrays are populated
// by nodes directly, not by path assignment into missing indices).
func Set(root Object, path string, val interface{}) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("value: empty path")
	}
	cur := interface{}(root)
	for i, seg := range segments {
		last := i == len(segments)-1
		switch node := cur.(type) {
		case map[string]interface{}:
			if last {
				node[seg] = val
				return nil
			}
			next, ok := node[seg]
			if !ok || next == nil {
				next = Object{}
				node[seg] = next
			}
			if _, isObj := next.(map[string]interface{}); !isObj {
				if _, isArr := next.([]interface{}); !isArr {
					next = Object{}
					node[seg] = next
				}
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("value: index %q out of range", seg)
			}
			if last {
				node[idx] = val
				return nil
			}
			cur = node[idx]
		default:
			return fmt.Errorf("value: cannot descend into scalar at segment %q", seg)
		}
	}
	return nil
}

// MergeShallow copies the top-level fields of patch into dst, overwriting
// any existing keys. This is the edge-payload merge step of the
// interpreter (spec step 2.f): only the top level is merged, nested
// objects are replaced wholesale.
func MergeShallow(dst Object, patch Object) {
	for k, v := range patch {
		dst[k] = v
	}
}

// IsUndefined reports whether v represents "no payload produced" — the
// thunk-not-fired sentinel used by EdgeMap resolution. Go has no
// `undefined`; loom models it as a (value, bool) pair everywhere instead,
// so this only exists for the Value == nil vs "absent" distinction at
// state-path reads (§4.C: missing path resolves to JSON null).
func IsUndefined(v interface{}, ok bool) bool {
	return !ok
}
