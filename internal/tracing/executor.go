package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TraceRun wraps a full workflow run in a "workflow.execute" span carrying
// the tenant/workflow/execution identifiers, mirroring the interpreter's own
// Run entry point.
func TraceRun(ctx context.Context, tenantID, workflowID, executionID string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, "workflow.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("workflow_id", workflowID),
		attribute.String("execution_id", executionID),
		attribute.String("component", "interpreter"),
	)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "workflow execution completed")
	return nil
}

// TraceNode wraps a single node invocation in a "workflow.step.execute"
// span, mirroring the teacher's per-step tracing around node dispatch. It is
// generic over fn's result so the interpreter can thread its node.EdgeMap
// return value straight through the span without an intermediate variable.
func TraceNode[T any](ctx context.Context, tenantID, workflowID, executionID, nodeID, nodeType string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := StartSpan(ctx, "workflow.step.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("workflow_id", workflowID),
		attribute.String("execution_id", executionID),
		attribute.String("node_id", nodeID),
		attribute.String("node_type", nodeType),
		attribute.String("component", "interpreter"),
	)

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetStatus(codes.Ok, "step execution completed")
	return out, nil
}
