// Package workflow holds the immutable value objects that make up a
// workflow definition: the versioned document, its ordered sequence of
// node invocations, and the edge targets those invocations declare.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Definition is an immutable, versioned workflow document. It is stored
// as JSON and must round-trip bit-identically through Marshal/Unmarshal
// (canonical key ordering, json.Number preserved verbatim).
type Definition struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	InitialState map[string]interface{} `json:"initialState"`
	Workflow     []NodeInvocation `json:"workflow"`
}

// NodeInvocation is the single-entry object form:
//
//	{ "<nodeTypeOrAlias>[...]": { ...config..., "<edge>?": <target> } }
//
// The trailing "..." on the key marks a loop node. Keys ending in "?" in
// the value object are edges; every other key is plain configuration.
type NodeInvocation struct {
	// Key is the original, unparsed JSON key.
	Key string
	// NodeType is Key with the loop marker and alias suffix stripped.
	NodeType string
	// Alias disambiguates multiple invocations of the same node type in
	// one workflow (e.g. "math#2" -> NodeType "math", Alias "2").
	Alias string
	// IsLoop is true when Key carried a trailing "...".
	IsLoop bool
	// Config holds every key in the value object that is not an edge
	// (does not end in "?"), decoded with UseNumber, so numbers arrive as
	// json.Number rather than float64.
	Config map[string]interface{}
	// Edges maps edge name (including the trailing "?") to its still-raw
	// target JSON, so it is parsed into a NodeInvocation/sub-flow only
	// when the interpreter actually takes that edge.
	Edges map[string]json.RawMessage
	// edgeOrder preserves the JSON key order of the edges, because edge
	// declaration order in the source document is a readability aid
	// only — edge *selection* order always comes from the node's
	// returned EdgeMap, never from here.
	edgeOrder []string
}

// EdgeNames returns edge keys (ending "?") in their declaration order.
func (n NodeInvocation) EdgeNames() []string {
	out := make([]string, len(n.edgeOrder))
	copy(out, n.edgeOrder)
	return out
}

// EdgeTarget parses and returns the target of a named edge: nil (terminal),
// a single NodeInvocation (deep nesting), or a []NodeInvocation (sub-flow).
// ok is false if the edge name was not declared on this invocation.
func (n NodeInvocation) EdgeTarget(edge string) (target interface{}, ok bool, err error) {
	raw, present := n.Edges[edge]
	if !present {
		return nil, false, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if string(trimmed) == "null" {
		return nil, true, nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var seq []NodeInvocation
		if err := json.Unmarshal(raw, &seq); err != nil {
			return nil, true, fmt.Errorf("workflow: parsing sub-flow for edge %q: %w", edge, err)
		}
		return seq, true, nil
	}
	var single NodeInvocation
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, true, fmt.Errorf("workflow: parsing nested invocation for edge %q: %w", edge, err)
	}
	return single, true, nil
}

// ParseKey splits a raw JSON key into NodeType, Alias and IsLoop.
//
// Grammar: "<type>[#<alias>][...]" — the loop marker, if present, is
// always the final three characters.
func ParseKey(key string) (nodeType, alias string, isLoop bool) {
	nodeType = key
	if strings.HasSuffix(nodeType, "...") {
		isLoop = true
		nodeType = strings.TrimSuffix(nodeType, "...")
	}
	if idx := strings.LastIndex(nodeType, "#"); idx >= 0 {
		alias = nodeType[idx+1:]
		nodeType = nodeType[:idx]
	}
	return nodeType, alias, isLoop
}

// UnmarshalJSON implements the single-key object parsing rule.
func (n *NodeInvocation) UnmarshalJSON(data []byte) error {
	var outer map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&outer); err != nil {
		return fmt.Errorf("workflow: node invocation must be a JSON object: %w", err)
	}
	if len(outer) != 1 {
		return fmt.Errorf("workflow: node invocation must have exactly one key, got %d", len(outer))
	}

	var key string
	var body json.RawMessage
	for k, v := range outer {
		key, body = k, v
	}

	nodeType, alias, isLoop := ParseKey(key)

	var bodyFields map[string]json.RawMessage
	bodyDec := json.NewDecoder(bytes.NewReader(body))
	bodyDec.UseNumber()
	if err := bodyDec.Decode(&bodyFields); err != nil {
		return fmt.Errorf("workflow: node invocation %q body must be a JSON object: %w", key, err)
	}

	// Preserve declared field order for edgeOrder; json.Decoder does not
	// expose map key order, so re-scan the raw tokens for ordering.
	order, err := objectKeyOrder(body)
	if err != nil {
		return err
	}

	config := make(map[string]interface{})
	edges := make(map[string]json.RawMessage)
	var edgeOrder []string
	for _, field := range order {
		raw := bodyFields[field]
		if strings.HasSuffix(field, "?") {
			edges[field] = raw
			edgeOrder = append(edgeOrder, field)
			continue
		}
		var v interface{}
		vd := json.NewDecoder(bytes.NewReader(raw))
		vd.UseNumber()
		if err := vd.Decode(&v); err != nil {
			return fmt.Errorf("workflow: node invocation %q field %q: %w", key, field, err)
		}
		config[field] = v
	}

	n.Key = key
	n.NodeType = nodeType
	n.Alias = alias
	n.IsLoop = isLoop
	n.Config = config
	n.Edges = edges
	n.edgeOrder = edgeOrder
	return nil
}

// MarshalJSON re-emits the single-key form, restoring plain config keys
// before edge keys in a stable, sorted order — a canonicalization, not a
// byte-for-byte echo of arbitrary input ordering.
func (n NodeInvocation) MarshalJSON() ([]byte, error) {
	body := make(map[string]json.RawMessage, len(n.Config)+len(n.Edges))
	var keys []string
	for k, v := range n.Config {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		body[k] = raw
		keys = append(keys, k)
	}
	for k, v := range n.Edges {
		body[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(body[k])
	}
	buf.WriteByte('}')

	outerKey, err := json.Marshal(n.Key)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteByte('{')
	out.Write(outerKey)
	out.WriteByte(':')
	out.Write(buf.Bytes())
	out.WriteByte('}')
	return out.Bytes(), nil
}

// objectKeyOrder scans a JSON object's top-level keys in source order.
func objectKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("workflow: reading object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("workflow: expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		keys = append(keys, key)
		// skip the value
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
