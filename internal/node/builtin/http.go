package builtin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/expr"
	"github.com/loomwork/loom/internal/node"
)

// HTTPRequestDescriptor describes the "httpRequest" node: an outbound call
// made through the run's shared *http.Client (§1, external collaborator).
var HTTPRequestDescriptor = node.Descriptor{
	ID:          "httpRequest",
	Category:    "io",
	Description: "performs an outbound HTTP request and branches success? / error?",
	Edges:       []string{"success?", "error?"},
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":     map[string]interface{}{"type": "string"},
			"method":  map[string]interface{}{"type": "string"},
			"headers": map[string]interface{}{"type": "object"},
			"body":    map[string]interface{}{},
		},
		"required": []string{"url"},
	},
}

type httpRequestNode struct{}

// NewHTTPRequest constructs the httpRequest node factory.
func NewHTTPRequest() node.Node { return httpRequestNode{} }

func (httpRequestNode) Execute(ctx *execctx.Context) (node.EdgeMap, error) {
	url, _ := ctx.Config["url"].(string)
	url = expr.Interpolate(url, ctx.State)

	method, _ := ctx.Config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body, ok := ctx.Config["body"]; ok && body != nil {
		resolved := expr.ResolveRefs(body, ctx.State)
		raw, err := json.Marshal(resolved)
		if err != nil {
			return nil, fmt.Errorf("httpRequest: encoding body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx.GoContext, method, url, bodyReader)
	if err != nil {
		return errorEdge(fmt.Sprintf("building request: %v", err)), nil
	}
	if headers, ok := ctx.Config["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := ctx.Services.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return errorEdge(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorEdge(fmt.Sprintf("reading response: %v", err)), nil
	}

	var parsedBody interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &parsedBody); err != nil {
			parsedBody = string(respBody)
		}
	}

	result := map[string]interface{}{
		"status": resp.StatusCode,
		"body":   parsedBody,
	}

	if resp.StatusCode >= 400 {
		return node.EdgeMap{
			{Name: "error?", Payload: func() (interface{}, bool) { return result, true }},
		}, nil
	}
	return node.EdgeMap{
		{Name: "success?", Payload: func() (interface{}, bool) { return result, true }},
	}, nil
}

func errorEdge(message string) node.EdgeMap {
	return node.EdgeMap{
		{Name: "error?", Payload: func() (interface{}, bool) {
			return map[string]interface{}{"error": message}, true
		}},
	}
}
