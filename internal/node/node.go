// Package node defines the Node contract nodes implement, the registry
// that discovers and indexes node types at process start, and the
// reflection metadata the analysis component (§4.H) reads.
package node

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/loomwork/loom/internal/execctx"
)

// Edge is one possible outcome of a node invocation. Payload is a thunk:
// it is invoked by the interpreter to learn whether this edge fires, and
// if so with what data. This is the cheap way to preserve "a payload is
// produced only if the edge is taken" (§9) without building a tagged
// union type for every node's return shape.
type Edge struct {
	Name    string
	Payload func() (data interface{}, ok bool)
}

// EdgeMap is an ordered set of edges. Order is significant: the
// interpreter takes the first edge whose Payload reports ok==true,
// breaking ties by this insertion order (§4.D.2.e, locked by
// interpreter_test.go's TestEdgeSelection_FirstWins).
type EdgeMap []Edge

// Node is the single capability every node type implements. Execute must
// not be called concurrently with another Execute on the same ctx — the
// interpreter guarantees single-threaded-per-execution invocation (§5).
type Node interface {
	Execute(ctx *execctx.Context) (EdgeMap, error)
}

// Factory builds a fresh Node instance per invocation. Nodes may be
// stateless singletons (factory always returns the same value) or
// allocate fresh state; the registry does not care.
type Factory func() Node

// Descriptor is the compile-time, reflection-only metadata for a node
// type (§3 Node Metadata).
type Descriptor struct {
	ID          string
	Category    string
	Description string
	// InputSchema is a JSON Schema document describing Config.
	InputSchema map[string]interface{}
	// Edges is the declared edge set, e.g. ["success?", "error?"].
	Edges []string
	// AIHints is free-form metadata consumed only by reflection.
	AIHints map[string]interface{}
	// Predecessors/Successors are static composability hints used by
	// §4.H's suggestion graph.
	Predecessors []string
	Successors   []string
}

type registration struct {
	desc    Descriptor
	factory Factory
	source  string // "universal" or "server"
}

// Registry indexes node types by id. Registration is expected to happen
// once at process start; ByID/List are safe for concurrent read access
// from many in-flight executions.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]registration)}
}

// RegisterUniversal registers a bundled node type shared across all
// deployments. Panics on a duplicate id — duplicate node ids are a fatal
// startup defect, not a runtime error (§4.A).
func (r *Registry) RegisterUniversal(desc Descriptor, factory Factory) {
	r.register("universal", desc, factory)
}

// RegisterServer registers a process-local node type.
func (r *Registry) RegisterServer(desc Descriptor, factory Factory) {
	r.register("server", desc, factory)
}

func (r *Registry) register(source string, desc Descriptor, factory Factory) {
	if desc.ID == "" {
		panic("node: Descriptor.ID must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[desc.ID]; exists {
		panic(fmt.Sprintf("node: duplicate node id %q registered from %s source", desc.ID, source))
	}
	r.nodes[desc.ID] = registration{desc: desc, factory: factory, source: source}
}

// ErrUnknownNode is returned by ByID on a registry miss; the interpreter
// surfaces this as the UNKNOWN_NODE error code (§7).
var ErrUnknownNode = fmt.Errorf("UNKNOWN_NODE")

// ByID looks up a node type by its registered id.
func (r *Registry) ByID(id string) (Descriptor, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.nodes[id]
	if !ok {
		return Descriptor{}, nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	return reg.desc, reg.factory, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Category string
	Search   string // case-insensitive substring match over id + description
}

// List returns descriptors matching filter, sorted by id for determinism.
func (r *Registry) List(filter ListFilter) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.nodes))
	search := strings.ToLower(filter.Search)
	for _, reg := range r.nodes {
		if filter.Category != "" && reg.desc.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(reg.desc.ID), search) &&
			!strings.Contains(strings.ToLower(reg.desc.Description), search) {
			continue
		}
		out = append(out, reg.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
