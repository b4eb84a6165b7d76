// Package events defines the live event wire schema the interpreter emits
// during a run (§6) and the EventSink interface that consumes them.
// internal/websocket is the one concrete sink shipped in this repo; the
// fan-out broker itself is an external collaborator (§1).
package events

import "time"

// Name enumerates the six stable event names a run emits.
type Name string

const (
	WorkflowStarted Name = "workflow:started"
	WorkflowFailed  Name = "workflow:failed"
	WorkflowDone    Name = "workflow:completed"
	NodeStarted     Name = "node:started"
	NodeDone        Name = "node:completed"
	NodeFailed      Name = "node:failed"
)

// Event is the wire shape published for every lifecycle transition of a
// workflow run. Fields not relevant to a given Name are left zero-valued
// (e.g. NodeID is empty for workflow:* events).
type Event struct {
	Name          Name        `json:"name"`
	WorkflowID    string      `json:"workflowId"`
	ExecutionID   string      `json:"executionId"`
	TenantID      string      `json:"tenantId"`
	NodeID        string      `json:"nodeId,omitempty"`
	NodeType      string      `json:"nodeType,omitempty"`
	Edge          string      `json:"edge,omitempty"`
	Result        interface{} `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
	OccurredAt    time.Time   `json:"occurredAt"`
	DurationMs    int64       `json:"durationMs,omitempty"`
}

// Sink receives events as the interpreter emits them. Publish must not
// block the interpreter indefinitely; a slow or unavailable sink should
// drop or buffer internally rather than stall execution.
type Sink interface {
	Publish(Event)
}

// NopSink discards every event. Used as the default when no sink is
// configured, e.g. unit tests constructing an execctx.Context directly.
type NopSink struct{}

// Publish implements Sink by discarding ev.
func (NopSink) Publish(Event) {}
