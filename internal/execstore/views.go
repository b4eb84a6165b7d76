package execstore

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/loomwork/loom/internal/interpreter"
)

// TimelineEntry is one chronological marker in a run's reconstructed
// timeline (§4.E derived view).
type TimelineEntry struct {
	Event      string    `json:"event"`
	NodeID     string    `json:"nodeId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// DecodeNodeLogs unmarshals rec's stored node log blob back into its
// typed form, for callers (e.g. the execution diff view) that need more
// than Timeline's flattened markers.
func DecodeNodeLogs(rec *ExecutionRecord) ([]interpreter.NodeLogEntry, error) {
	var logs []interpreter.NodeLogEntry
	if len(rec.NodeLogs) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(rec.NodeLogs, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// Timeline reconstructs the ordered event sequence of a completed
// execution purely from its stored node logs: workflow:started, each
// node's started/completed|failed (with a state:changed marker when
// stateBefore differs from stateAfter), and workflow:completed|failed.
func Timeline(rec *ExecutionRecord) ([]TimelineEntry, error) {
	var logs []interpreter.NodeLogEntry
	if len(rec.NodeLogs) > 0 {
		if err := json.Unmarshal(rec.NodeLogs, &logs); err != nil {
			return nil, err
		}
	}

	out := []TimelineEntry{{Event: "workflow:started", OccurredAt: rec.StartedAt}}
	cursor := rec.StartedAt
	for _, entry := range logs {
		started := cursor
		completed := started.Add(time.Duration(entry.DurationMs) * time.Millisecond)
		cursor = completed

		out = append(out, TimelineEntry{Event: "node:started", NodeID: entry.NodeID, OccurredAt: started})
		if !reflect.DeepEqual(entry.StateBefore, entry.StateAfter) {
			out = append(out, TimelineEntry{Event: "state:changed", NodeID: entry.NodeID, OccurredAt: completed})
		}
		if entry.Status == "failed" {
			out = append(out, TimelineEntry{Event: "node:failed", NodeID: entry.NodeID, OccurredAt: completed})
		} else {
			out = append(out, TimelineEntry{Event: "node:completed", NodeID: entry.NodeID, OccurredAt: completed})
		}
	}

	finalEvent := "workflow:completed"
	if rec.Status == StatusFailed {
		finalEvent = "workflow:failed"
	}
	finishedAt := cursor
	if rec.CompletedAt != nil {
		finishedAt = *rec.CompletedAt
	}
	out = append(out, TimelineEntry{Event: finalEvent, OccurredAt: finishedAt})
	return out, nil
}

// PatchOp is one JSON-patch-style operation produced by StateDiff.
type PatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// StateDiff compares two arbitrary JSON-object snapshots (a node log
// entry's stateBefore/stateAfter) and returns the minimal set of
// replace/add/remove operations that transforms before into after. A
// hand-rolled comparator is used instead of a JSON-patch library — see
// DESIGN.md for why.
func StateDiff(before, after map[string]interface{}) []PatchOp {
	var ops []PatchOp
	for k, av := range after {
		bv, existed := before[k]
		if !existed {
			ops = append(ops, PatchOp{Op: "add", Path: "/" + k, Value: av})
			continue
		}
		if !reflect.DeepEqual(bv, av) {
			ops = append(ops, PatchOp{Op: "replace", Path: "/" + k, Value: av})
		}
	}
	for k := range before {
		if _, stillThere := after[k]; !stillThere {
			ops = append(ops, PatchOp{Op: "remove", Path: "/" + k})
		}
	}
	return ops
}

// Stats summarizes a filtered set of executions (§4.E derived view).
type Stats struct {
	Total           int            `json:"total"`
	ByStatus        map[Status]int `json:"byStatus"`
	SuccessRate     float64        `json:"successRate"`
	AverageDuration time.Duration  `json:"averageDuration"`
}

// ComputeStats aggregates recs into a Stats summary.
func ComputeStats(recs []*ExecutionRecord) Stats {
	stats := Stats{ByStatus: make(map[Status]int)}
	var totalDuration time.Duration
	var completedCount int

	for _, rec := range recs {
		stats.Total++
		stats.ByStatus[rec.Status]++
		if rec.Status == StatusCompleted && rec.CompletedAt != nil {
			completedCount++
			totalDuration += rec.CompletedAt.Sub(rec.StartedAt)
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.ByStatus[StatusCompleted]) / float64(stats.Total)
	}
	if completedCount > 0 {
		stats.AverageDuration = totalDuration / time.Duration(completedCount)
	}
	return stats
}
