// Package reflect implements the Reflection/Analysis component (§4.H):
// a read-only, non-executing view over the node registry and workflow
// definitions — node catalog, composability graph, static explanation,
// deep validation and the pattern library. Nothing in this package ever
// invokes a node's Execute; it reasons about definitions and descriptors
// only.
package reflect

import "github.com/loomwork/loom/internal/node"

// CatalogEntry is one node type's reflection-facing summary.
type CatalogEntry struct {
	ID           string                 `json:"id"`
	Category     string                 `json:"category"`
	Description  string                 `json:"description"`
	Edges        []string               `json:"edges"`
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty"`
	AIHints      map[string]interface{} `json:"aiHints,omitempty"`
	Predecessors []string               `json:"predecessors,omitempty"`
	Successors   []string               `json:"successors,omitempty"`
}

// CatalogFilter narrows Catalog results; it is a thin pass-through to
// node.ListFilter so the reflection API and the registry agree on filter
// semantics without duplicating the matching logic.
type CatalogFilter struct {
	Category string
	Search   string
}

// Catalog lists the registered node types, optionally filtered by
// category and/or a case-insensitive text search over id + description.
// It delegates entirely to node.Registry.List for the actual matching.
func Catalog(registry *node.Registry, filter CatalogFilter) []CatalogEntry {
	descs := registry.List(node.ListFilter{Category: filter.Category, Search: filter.Search})
	out := make([]CatalogEntry, 0, len(descs))
	for _, d := range descs {
		out = append(out, entryFromDescriptor(d))
	}
	return out
}

func entryFromDescriptor(d node.Descriptor) CatalogEntry {
	return CatalogEntry{
		ID:           d.ID,
		Category:     d.Category,
		Description:  d.Description,
		Edges:        d.Edges,
		InputSchema:  d.InputSchema,
		AIHints:      d.AIHints,
		Predecessors: d.Predecessors,
		Successors:   d.Successors,
	}
}
