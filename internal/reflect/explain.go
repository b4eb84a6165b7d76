package reflect

import (
	"fmt"

	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/workflow"
)

// Step is one node invocation in an explained workflow tree, mirroring
// the shape of a NodeLogEntry but produced without ever running the
// workflow (§4.H "non-executing walk").
type Step struct {
	Path        string          `json:"path"`
	NodeType    string          `json:"nodeType"`
	Alias       string          `json:"alias,omitempty"`
	IsLoop      bool            `json:"isLoop"`
	Description string          `json:"description,omitempty"`
	Unknown     bool            `json:"unknown,omitempty"`
	ViaEdge     string          `json:"viaEdge,omitempty"`
	Children    map[string]Step `json:"children,omitempty"`
}

// Explanation is Explain's full result: the step tree plus the flat list
// of state fields the workflow reads from and (heuristically) writes to,
// gathered across the whole definition.
type Explanation struct {
	WorkflowID string   `json:"workflowId"`
	Steps      []Step   `json:"steps"`
	Reads      []string `json:"stateReads"`
	Writes     []string `json:"stateWrites"`
}

// Explain statically walks def and produces a structured summary of its
// shape without executing a single node — the registry is consulted only
// for each node type's human Description.
func Explain(registry *node.Registry, def workflow.Definition) Explanation {
	reads := make(map[string]bool)
	writes := make(map[string]bool)

	steps := make([]Step, 0, len(def.Workflow))
	for i := range def.Workflow {
		steps = append(steps, explainInvocation(registry, &def.Workflow[i], fmt.Sprintf("%d", i), "", reads, writes))
	}

	return Explanation{
		WorkflowID: def.ID,
		Steps:      steps,
		Reads:      sortedKeys(reads),
		Writes:     sortedKeys(writes),
	}
}

func explainInvocation(registry *node.Registry, inv *workflow.NodeInvocation, path, viaEdge string, reads, writes map[string]bool) Step {
	desc, _, err := registry.ByID(inv.NodeType)
	step := Step{
		Path:     path,
		NodeType: inv.NodeType,
		Alias:    inv.Alias,
		IsLoop:   inv.IsLoop,
		ViaEdge:  viaEdge,
		Unknown:  err != nil,
	}
	if err == nil {
		step.Description = desc.Description
	}

	collectRefs(inv.Config, reads)
	collectWrites(inv, writes)

	children := make(map[string]Step)
	for _, edgeName := range inv.EdgeNames() {
		target, ok, perr := inv.EdgeTarget(edgeName)
		if perr != nil || !ok || target == nil {
			continue
		}
		switch t := target.(type) {
		case workflow.NodeInvocation:
			children[edgeName] = explainInvocation(registry, &t, path+"."+edgeName, edgeName, reads, writes)
		case []workflow.NodeInvocation:
			children[edgeName] = explainSubFlow(registry, t, path+"."+edgeName, edgeName, reads, writes)
		}
	}
	if len(children) > 0 {
		step.Children = children
	}
	return step
}

// explainSubFlow represents a sub-flow array as a single synthetic Step
// whose Children are keyed by index, since Step.Children is otherwise
// keyed by edge name — the "0", "1", ... keys make a sub-flow's internal
// sequencing visible in the same tree shape as single continuations.
func explainSubFlow(registry *node.Registry, seq []workflow.NodeInvocation, basePath, viaEdge string, reads, writes map[string]bool) Step {
	children := make(map[string]Step, len(seq))
	for i := range seq {
		childPath := fmt.Sprintf("%s.%d", basePath, i)
		children[fmt.Sprintf("%d", i)] = explainInvocation(registry, &seq[i], childPath, "", reads, writes)
	}
	return Step{
		Path:        basePath,
		NodeType:    "(sub-flow)",
		ViaEdge:     viaEdge,
		Description: fmt.Sprintf("%d-step sub-flow", len(seq)),
		Children:    children,
	}
}

func collectRefs(cfg interface{}, reads map[string]bool) {
	switch c := cfg.(type) {
	case string:
		for _, ref := range extractRefs(c) {
			reads[ref] = true
		}
	case map[string]interface{}:
		for _, v := range c {
			collectRefs(v, reads)
		}
	case []interface{}:
		for _, v := range c {
			collectRefs(v, reads)
		}
	}
}

func collectWrites(inv *workflow.NodeInvocation, writes map[string]bool) {
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
		writes[outVar] = true
	}
	if inv.NodeType == "editFields" {
		if fields, ok := inv.Config["fields"].([]interface{}); ok {
			for _, f := range fields {
				if fm, ok := f.(map[string]interface{}); ok {
					if p, ok := fm["path"].(string); ok && p != "" {
						writes[p] = true
					}
				}
			}
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
