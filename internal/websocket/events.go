package websocket

import (
	"encoding/json"

	"github.com/loomwork/loom/internal/events"
)

// Room helpers.
func executionRoom(executionID string) string {
	return "execution:" + executionID
}

func workflowRoom(workflowID string) string {
	return "workflow:" + workflowID
}

func tenantRoom(tenantID string) string {
	return "tenant:" + tenantID
}

// EventSink adapts a Hub into an events.Sink (§6): every event the
// interpreter publishes is fanned out to three rooms at once —
// execution-scoped, workflow-scoped, and tenant-scoped — so a client can
// subscribe at whichever granularity its dashboard needs. Grounded on
// the teacher's HubBroadcaster (internal/websocket/events.go), trimmed
// from its one-method-per-lifecycle-phase surface (BroadcastExecution
// Started/Completed/Failed, BroadcastStep*, BroadcastProgress) down to
// the single Publish(events.Event) the Sink contract requires — this
// system's events.Event already carries a Name discriminant, so one
// broadcast path serves every event instead of six near-identical ones.
type EventSink struct {
	hub *Hub
}

// NewEventSink builds an EventSink broadcasting through hub.
func NewEventSink(hub *Hub) *EventSink {
	return &EventSink{hub: hub}
}

// Publish implements events.Sink: marshal ev once, fan it out to every
// room it's relevant to. A marshal failure is dropped rather than
// propagated — per the Sink contract, a broadcast problem must never
// stall the interpreter.
func (s *EventSink) Publish(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	if ev.ExecutionID != "" {
		s.hub.BroadcastToRoom(executionRoom(ev.ExecutionID), data)
	}
	if ev.WorkflowID != "" {
		s.hub.BroadcastToRoom(workflowRoom(ev.WorkflowID), data)
	}
	if ev.TenantID != "" {
		s.hub.BroadcastToRoom(tenantRoom(ev.TenantID), data)
	}
}

var _ events.Sink = (*EventSink)(nil)
