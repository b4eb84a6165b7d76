// Package interpreter implements the workflow execution algorithm of
// §4.D: it walks a workflow definition's node invocations, resolving
// config, dispatching to the node registry, following the taken edge,
// and recording a deterministic per-node log — the one piece of this
// system every other component exists to serve.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomwork/loom/internal/events"
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/expr"
	"github.com/loomwork/loom/internal/interperrors"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/tracing"
	"github.com/loomwork/loom/internal/value"
	"github.com/loomwork/loom/internal/workflow"
)

// NodeLogEntry is one append-only record of a single node invocation
// (§3 Node Log Entry).
type NodeLogEntry struct {
	NodeID      string          `json:"nodeId"`
	NodeType    string          `json:"nodeType"`
	Status      string          `json:"status"`
	DurationMs  int64           `json:"durationMs"`
	Config      json.RawMessage `json:"config"`
	Output      interface{}     `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	StateBefore value.Object    `json:"stateBefore"`
	StateAfter  value.Object    `json:"stateAfter"`
}

// Result is the terminal outcome of one Run (§4.D top-level contract).
type Result struct {
	Status       string // "completed" | "failed"
	FinalState   value.Object
	Error        string
	ErrorCode    interperrors.Code
	FailedNodeID string
	NodeLogs     []NodeLogEntry
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Options configures one Run invocation.
type Options struct {
	// InitialStateOverride is shallow-merged over the definition's own
	// initialState, override winning by key (§4.D step 1).
	InitialStateOverride value.Object
	Registry             *node.Registry
	Logger               *slog.Logger
	Cancel               <-chan struct{}
	TenantID             string
	CorrelationID        string // the execution id
	Services             execctx.Services
	EventSink            events.Sink
	// JWTToken, when non-empty, is injected as state key "JWT_token"
	// before the first node runs (§4.D auth injection).
	JWTToken string
}

// Run executes def start-to-finish against a freshly seeded state map and
// returns the terminal Result. A panicking node is recovered and surfaces
// as a NODE_FAILED result; Run itself panics only when opts.Registry is
// nil.
func Run(goCtx context.Context, def workflow.Definition, opts Options) *Result {
	if opts.Registry == nil {
		panic("interpreter: Options.Registry must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.EventSink
	if sink == nil {
		sink = events.NopSink{}
	}
	cancel := opts.Cancel
	if cancel == nil {
		cancel = make(chan struct{})
	}

	state := value.CloneObject(def.InitialState)
	value.MergeShallow(state, opts.InitialStateOverride)
	if opts.JWTToken != "" {
		state["JWT_token"] = opts.JWTToken
	}

	r := &run{
		goCtx:         goCtx,
		state:         state,
		registry:      opts.Registry,
		logger:        logger,
		cancel:        cancel,
		tenantID:      opts.TenantID,
		correlationID: opts.CorrelationID,
		workflowID:    def.ID,
		services:      opts.Services,
		sink:          sink,
	}

	started := time.Now()
	sink.Publish(events.Event{
		Name: events.WorkflowStarted, WorkflowID: def.ID, ExecutionID: opts.CorrelationID,
		TenantID: opts.TenantID, OccurredAt: started,
	})

	err := tracing.TraceRun(goCtx, opts.TenantID, def.ID, opts.CorrelationID, func(tctx context.Context) error {
		r.goCtx = tctx
		return r.executeSequence(def.Workflow, "")
	})
	completed := time.Now()

	result := &Result{
		FinalState:  r.state,
		NodeLogs:    r.logs,
		StartedAt:   started,
		CompletedAt: completed,
	}

	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		if ie, ok := err.(*interperrors.Error); ok {
			result.ErrorCode = ie.Code
			result.FailedNodeID = ie.NodeID
		}
		sink.Publish(events.Event{
			Name: events.WorkflowFailed, WorkflowID: def.ID, ExecutionID: opts.CorrelationID,
			TenantID: opts.TenantID, Error: result.Error, OccurredAt: completed,
		})
		return result
	}

	result.Status = "completed"
	sink.Publish(events.Event{
		Name: events.WorkflowDone, WorkflowID: def.ID, ExecutionID: opts.CorrelationID,
		TenantID: opts.TenantID, OccurredAt: completed,
	})
	return result
}

// run bundles the mutable state one Run threads through its recursive
// descent: the live execution state, the accumulating node log, and the
// collaborators every node invocation needs.
type run struct {
	goCtx         context.Context
	state         value.Object
	logs          []NodeLogEntry
	registry      *node.Registry
	logger        *slog.Logger
	cancel        <-chan struct{}
	tenantID      string
	correlationID string
	workflowID    string
	services      execctx.Services
	sink          events.Sink
}

func (r *run) cancelled() bool {
	select {
	case <-r.cancel:
		return true
	default:
		return false
	}
}

// executeSequence runs every invocation in seq in order at basePath
// (§4.D step 2/2.i "a sequence -> recurse into step 2").
func (r *run) executeSequence(seq []workflow.NodeInvocation, basePath string) error {
	for i, inv := range seq {
		path := fmt.Sprintf("%d", i)
		if basePath != "" {
			path = fmt.Sprintf("%s.%d", basePath, i)
		}
		if err := r.executeInvocation(inv, path); err != nil {
			return err
		}
	}
	return nil
}

// executeInvocation drives one node invocation to the end of its edge
// chain: following deep-nested single continuations and sub-flow arrays,
// and — for loop nodes — re-entering step b until the loop exits
// (§4.D steps 2.a-2.i).
func (r *run) executeInvocation(inv workflow.NodeInvocation, path string) error {
	current := inv
	currentPath := path

	for {
		if r.cancelled() {
			return interperrors.New(interperrors.Cancelled, "execution cancelled").WithNode(currentPath)
		}

		edgeName, err := r.invokeOnce(current, currentPath)
		if err != nil {
			return err
		}

		target, ok, perr := current.EdgeTarget(edgeName)
		if perr != nil {
			return interperrors.Wrap(interperrors.NodeFailed, "parsing edge target", perr).WithNode(currentPath)
		}
		if !ok || target == nil {
			// Terminal: null edge value, or the fired edge carries no
			// declared target at all. For a loop node this is how the
			// loop exits back into the enclosing sequence.
			return nil
		}

		childPath := currentPath + "." + edgeName
		switch t := target.(type) {
		case workflow.NodeInvocation:
			if current.IsLoop {
				if err := r.executeInvocation(t, childPath); err != nil {
					return err
				}
				continue // re-enter step b: run the loop node again
			}
			// Deep-nested continuation: chase the chain without
			// returning to the enclosing sequence.
			current = t
			currentPath = childPath
			continue
		case []workflow.NodeInvocation:
			if err := r.executeSequence(t, childPath); err != nil {
				return err
			}
			if current.IsLoop {
				continue // loop body finished one iteration; re-enter step b
			}
			return nil // sub-flow finished; this invocation's chain ends
		default:
			return nil
		}
	}
}

// invokeOnce performs steps 2.a-2.g for a single node invocation: config
// resolution, node dispatch, edge selection, state merge, and log
// append. It returns the name of the edge that fired.
func (r *run) invokeOnce(inv workflow.NodeInvocation, path string) (string, error) {
	desc, factory, err := r.registry.ByID(inv.NodeType)
	if err != nil {
		return "", interperrors.Wrap(interperrors.UnknownNode, inv.NodeType, err).WithNode(path)
	}

	resolvedAny := expr.ResolveRefs(inv.Config, r.state)
	resolvedConfig, _ := resolvedAny.(map[string]interface{})
	if resolvedConfig == nil {
		resolvedConfig = map[string]interface{}{}
	}

	stateBefore := value.CloneObject(r.state)

	ctx := &execctx.Context{
		GoContext:     r.goCtx,
		State:         r.state,
		Logger:        r.logger,
		Cancel:        r.cancel,
		TenantID:      r.tenantID,
		CorrelationID: r.correlationID,
		WorkflowID:    r.workflowID,
		Services:      r.services,
		Events:        r.sink,
		Config:        resolvedConfig,
	}

	start := time.Now()
	r.sink.Publish(events.Event{
		Name: events.NodeStarted, WorkflowID: r.workflowID, ExecutionID: r.correlationID,
		TenantID: r.tenantID, NodeID: path, NodeType: inv.NodeType, OccurredAt: start,
	})

	edgeMap, execErr := tracing.TraceNode(r.goCtx, r.tenantID, r.workflowID, r.correlationID, path, inv.NodeType,
		func(tctx context.Context) (node.EdgeMap, error) {
			ctx.GoContext = tctx
			return r.safeExecute(factory(), ctx)
		})
	duration := time.Since(start)

	if execErr != nil {
		r.appendLog(NodeLogEntry{
			NodeID: path, NodeType: inv.NodeType, Status: "failed",
			DurationMs: duration.Milliseconds(), Config: marshalConfig(resolvedConfig),
			Error: execErr.Error(), StateBefore: stateBefore, StateAfter: value.CloneObject(r.state),
		})
		r.sink.Publish(events.Event{
			Name: events.NodeFailed, WorkflowID: r.workflowID, ExecutionID: r.correlationID,
			TenantID: r.tenantID, NodeID: path, NodeType: inv.NodeType, Error: execErr.Error(),
			OccurredAt: time.Now(), DurationMs: duration.Milliseconds(),
		})
		return "", interperrors.Wrap(interperrors.NodeFailed, execErr.Error(), execErr).WithNode(path)
	}

	edgeName, payload, fired := selectEdge(edgeMap, desc)
	if !fired {
		nodeErr := interperrors.New(interperrors.NodeNoEdge, fmt.Sprintf("node %q produced no taken edge", inv.NodeType)).WithNode(path)
		r.appendLog(NodeLogEntry{
			NodeID: path, NodeType: inv.NodeType, Status: "failed",
			DurationMs: duration.Milliseconds(), Config: marshalConfig(resolvedConfig),
			Error: nodeErr.Error(), StateBefore: stateBefore, StateAfter: value.CloneObject(r.state),
		})
		return "", nodeErr
	}

	if patch, ok := payload.(map[string]interface{}); ok {
		value.MergeShallow(r.state, patch)
	}

	stateAfter := value.CloneObject(r.state)
	r.appendLog(NodeLogEntry{
		NodeID: path, NodeType: inv.NodeType, Status: "completed",
		DurationMs: duration.Milliseconds(), Config: marshalConfig(resolvedConfig),
		Output: payload, StateBefore: stateBefore, StateAfter: stateAfter,
	})
	r.sink.Publish(events.Event{
		Name: events.NodeDone, WorkflowID: r.workflowID, ExecutionID: r.correlationID,
		TenantID: r.tenantID, NodeID: path, NodeType: inv.NodeType, Edge: edgeName,
		Result: payload, OccurredAt: time.Now(), DurationMs: duration.Milliseconds(),
	})

	return edgeName, nil
}

// safeExecute recovers a panicking node body, surfacing it the same way
// as a returned error — the interpreter draws no distinction between the
// two (§4.D "any exception thrown by a node is captured").
func (r *run) safeExecute(n node.Node, ctx *execctx.Context) (edgeMap node.EdgeMap, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("node panicked: %v", rec)
		}
	}()
	return n.Execute(ctx)
}

// selectEdge picks the first edge in em whose thunk reports a payload
// (§4.D step 2.e, insertion-order tie-break — locked by
// TestEdgeSelection_FirstWins). desc is currently unused by selection
// itself; it is threaded through for future edge-declaration validation.
func selectEdge(em node.EdgeMap, _ node.Descriptor) (name string, payload interface{}, ok bool) {
	for _, e := range em {
		data, fired := e.Payload()
		if fired {
			return e.Name, data, true
		}
	}
	return "", nil, false
}

func (r *run) appendLog(entry NodeLogEntry) {
	r.logs = append(r.logs, entry)
}

func marshalConfig(config map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(config)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
