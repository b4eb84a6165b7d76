package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/node/builtin"
	"github.com/loomwork/loom/internal/workflow"
)

type stubLoader struct {
	def *workflow.Definition
}

func (s *stubLoader) Load(ctx context.Context, tenantID, workflowID string) (*workflow.Definition, error) {
	return s.def, nil
}

func newTestRouter(t *testing.T, automations *execstore.MemoryRepository, executions *execstore.MemoryRepository, def *workflow.Definition) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := node.NewRegistry()
	builtin.RegisterAll(registry)

	d := &Dispatcher{
		Automations: automations,
		Executions:  executions,
		Workflows:   &stubLoader{def: def},
		Registry:    registry,
		Logger:      slog.Default(),
	}
	r := gin.New()
	RegisterRoutes(r, d)
	return r
}

func mustParseDefinition(t *testing.T, raw string) *workflow.Definition {
	t.Helper()
	var def workflow.Definition
	require.NoError(t, json.Unmarshal([]byte(raw), &def))
	return &def
}

func TestDispatcher_UnknownPathReturns404(t *testing.T) {
	automations := execstore.NewMemoryRepository()
	executions := execstore.NewMemoryRepository()
	def := mustParseDefinition(t, `{"id":"w1","version":"1.0.0","initialState":{},"workflow":[{"noop":{}}]}`)

	r := newTestRouter(t, automations, executions, def)

	req := httptest.NewRequest(http.MethodPost, "/automations/webhook/missing", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatcher_DisabledAutomationReturns409(t *testing.T) {
	automations := execstore.NewMemoryRepository()
	executions := execstore.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, automations.Create(ctx, &execstore.Automation{
		ID: "a1", WorkflowID: "w1", Enabled: false, TriggerType: "webhook",
		TriggerConfig: []byte(`{"webhookUrl":"my-hook"}`),
	}))
	def := mustParseDefinition(t, `{"id":"w1","version":"1.0.0","initialState":{},"workflow":[{"noop":{}}]}`)

	r := newTestRouter(t, automations, executions, def)

	req := httptest.NewRequest(http.MethodPost, "/automations/webhook/my-hook", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDispatcher_RunsWorkflowAndReturnsExecutionID(t *testing.T) {
	automations := execstore.NewMemoryRepository()
	executions := execstore.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, automations.Create(ctx, &execstore.Automation{
		ID: "a1", WorkflowID: "w1", Enabled: true, TriggerType: "webhook",
		TriggerConfig: []byte(`{"webhookUrl":"my-hook"}`),
	}))
	def := mustParseDefinition(t, `{"id":"w1","version":"1.0.0","initialState":{},"workflow":[{"noop":{}}]}`)

	r := newTestRouter(t, automations, executions, def)

	req := httptest.NewRequest(http.MethodPost, "/automations/webhook/my-hook", strings.NewReader(`{"orderId":"o1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["executionId"])
	require.Equal(t, "a1", body["automationId"])

	rec, err := executions.Get(ctx, "", body["executionId"])
	require.NoError(t, err)
	require.Equal(t, execstore.TriggeredWebhook, rec.TriggeredBy)
	require.Equal(t, "http:my-hook", rec.TriggerSource)

	a, err := automations.GetAutomation(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, int64(1), a.RunCount)
}
