// Package execctx defines the per-run container nodes execute against: the
// shared mutable state map, the append-only log sink, cooperative
// cancellation, tenant/correlation identity, and the injected external
// collaborators.
package execctx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/loomwork/loom/internal/events"
	"github.com/loomwork/loom/internal/value"
)

// FlexStore is the per-tenant dynamic record-table engine. It is an
// external collaborator (§1); loom depends only on this interface.
type FlexStore interface {
	Get(ctx context.Context, tenantID, table, recordID string) (value.Object, error)
	Upsert(ctx context.Context, tenantID, table string, record value.Object) error
}

// ResourceStore is the sandboxed file-resource store with template
// interpolation. Also an external collaborator, interface-only.
type ResourceStore interface {
	Read(ctx context.Context, tenantID, path string) ([]byte, error)
}

// Services bundles the external collaborators a node may call into during
// its Execute. Fields are nil-able; a node that needs one it wasn't given
// should fail with a node-level error, not panic.
type Services struct {
	Flex       FlexStore
	Resources  ResourceStore
	HTTPClient *http.Client
}

// Context is the per-run execution container. A single Context is shared
// by every node invocation within one workflow run; it is never shared
// across runs.
type Context struct {
	// GoContext carries deadline/cancellation plumbing for blocking I/O a
	// node performs; it is distinct from Cancel, which is the
	// interpreter's own cooperative-cancellation signal checked only
	// between node invocations (§5).
	GoContext context.Context

	State value.Object

	Logger *slog.Logger

	// Cancel is closed to request cancellation. The interpreter checks it
	// between invocations only; a node's own in-flight I/O is not
	// forcibly interrupted.
	Cancel <-chan struct{}

	TenantID      string
	CorrelationID string // the execution id
	WorkflowID    string

	Services Services

	// Events receives the run's lifecycle events (§6). Defaults to a
	// discarding sink when unset.
	Events events.Sink

	// Config holds the current node invocation's resolved configuration,
	// attached by the interpreter immediately before Execute (§4.C).
	Config map[string]interface{}
}

// Cancelled reports whether the cooperative cancellation signal has
// fired.
func (c *Context) Cancelled() bool {
	select {
	case <-c.Cancel:
		return true
	default:
		return false
	}
}

// ConfigJSON marshals the resolved config for storage in a Node Log Entry.
func (c *Context) ConfigJSON() json.RawMessage {
	raw, err := json.Marshal(c.Config)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
