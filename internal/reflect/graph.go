package reflect

import "github.com/loomwork/loom/internal/node"

// Suggestion is one candidate node type that could follow (or precede) a
// given node, with a confidence score in [0,1]. Grounded on the teacher's
// pattern-matcher confidence idiom (internal/suggestions), adapted here
// from a string bucket (high/medium/low) to a continuous score since the
// composability graph ranks many candidates rather than picking one.
type Suggestion struct {
	NodeID     string  `json:"nodeId"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Graph answers "what could follow this node" / "what could precede this
// node" from the registry's static Predecessors/Successors hints plus a
// same-category fallback. It never inspects a concrete workflow; that is
// Explain's job.
type Graph struct {
	registry *node.Registry
}

// NewGraph builds a composability graph over registry.
func NewGraph(registry *node.Registry) *Graph {
	return &Graph{registry: registry}
}

// Successors ranks candidate node types that could plausibly follow
// nodeID's success-shaped edge, highest confidence first.
func (g *Graph) Successors(nodeID string) []Suggestion {
	return g.related(nodeID, func(d node.Descriptor) []string { return d.Successors })
}

// Predecessors ranks candidate node types that could plausibly precede
// nodeID, highest confidence first.
func (g *Graph) Predecessors(nodeID string) []Suggestion {
	return g.related(nodeID, func(d node.Descriptor) []string { return d.Predecessors })
}

func (g *Graph) related(nodeID string, hints func(node.Descriptor) []string) []Suggestion {
	desc, _, err := g.registry.ByID(nodeID)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	out := make([]Suggestion, 0, len(hints(desc)))
	for _, candidate := range hints(desc) {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		confidence, reason := g.score(desc, candidate, hints)
		out = append(out, Suggestion{NodeID: candidate, Confidence: confidence, Reason: reason})
	}

	// Same-category nodes not already named by a direct hint are weaker,
	// exploratory candidates.
	for _, other := range g.registry.List(node.ListFilter{Category: desc.Category}) {
		if other.ID == desc.ID || seen[other.ID] {
			continue
		}
		seen[other.ID] = true
		out = append(out, Suggestion{
			NodeID:     other.ID,
			Confidence: 0.3,
			Reason:     "same category (" + desc.Category + ")",
		})
	}

	sortByConfidenceDesc(out)
	return out
}

// score favors a hint the candidate reciprocates (the candidate's own
// descriptor names nodeID back) over a one-directional hint.
func (g *Graph) score(desc node.Descriptor, candidateID string, hints func(node.Descriptor) []string) (float64, string) {
	candidateDesc, _, err := g.registry.ByID(candidateID)
	if err != nil {
		return 0.6, "declared hint"
	}
	for _, reciprocal := range reciprocalHints(desc, candidateDesc, hints) {
		if reciprocal == desc.ID {
			return 1.0, "reciprocated hint"
		}
	}
	return 0.6, "declared hint"
}

// reciprocalHints returns the opposite hint list on candidateDesc: if
// hints selects Successors on desc, the reciprocal check is candidateDesc's
// Predecessors, and vice versa.
func reciprocalHints(desc, candidateDesc node.Descriptor, hints func(node.Descriptor) []string) []string {
	usingSuccessors := len(desc.Successors) > 0 && sameSlice(hints(desc), desc.Successors)
	if usingSuccessors {
		return candidateDesc.Predecessors
	}
	return candidateDesc.Successors
}

func sameSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortByConfidenceDesc(s []Suggestion) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Confidence > s[j-1].Confidence; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
