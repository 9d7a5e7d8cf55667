package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dagflow-io/dagflow/flow"
)

// HTTPNode performs one HTTP request per execution.
//
// Config keys (templates allowed in all string values):
//   - url: target URL (required)
//   - method: GET, POST, PUT, PATCH, DELETE (default GET)
//   - headers: map of header name to value
//   - body: request body; a string is sent verbatim, any other value is
//     JSON-encoded with Content-Type application/json
//   - timeoutSeconds: per-request timeout (default 30)
//
// Output:
//   - status_code: int
//   - headers: response headers, single values flattened
//   - body: decoded JSON when the response is application/json, raw string
//     otherwise
//
// Non-2xx responses fail the node with the status in the error message; the
// response body is still published in the failed Result's Data.
type HTTPNode struct {
	flow.Base
	client *http.Client
}

// NewHTTPNode is the registry factory for the http kind.
func NewHTTPNode(base flow.Base) (flow.Node, error) {
	return &HTTPNode{Base: base, client: &http.Client{}}, nil
}

var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

// Validate checks url presence and, when not templated, the method.
func (h *HTTPNode) Validate() error {
	if err := h.Base.Validate(); err != nil {
		return err
	}
	url, ok := h.Config()["url"].(string)
	if !ok || url == "" {
		return &flow.ConfigError{Field: "url", Message: "url is required"}
	}
	if m, ok := h.Config()["method"].(string); ok && m != "" && !hasTemplate(m) {
		if !allowedMethods[strings.ToUpper(m)] {
			return &flow.ConfigError{Field: "method", Message: "unsupported HTTP method: " + m}
		}
	}
	return nil
}

func (h *HTTPNode) Describe() flow.Description {
	return flow.Description{
		Description: "Performs an HTTP request and publishes the response",
		Category:    "network",
		Icon:        "globe",
	}
}

func (h *HTTPNode) Execute(ctx context.Context, inv flow.Invocation) flow.Result {
	url, _ := inv.Config["url"].(string)
	if url == "" {
		return flow.Fail("url is required")
	}

	method := http.MethodGet
	if m, ok := inv.Config["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if !allowedMethods[method] {
		return flow.Fail("unsupported HTTP method: " + method)
	}

	timeout := 30 * time.Second
	if secs, ok := asFloat(inv.Config["timeoutSeconds"]); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	jsonBody := false
	if raw, ok := inv.Config["body"]; ok && raw != nil {
		switch v := raw.(type) {
		case string:
			body = strings.NewReader(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return flow.Fail("encode request body: " + err.Error())
			}
			body = bytes.NewReader(encoded)
			jsonBody = true
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return flow.Fail("build request: " + err.Error())
	}
	if jsonBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := inv.Config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return flow.Fail("request failed: " + err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return flow.Fail("read response: " + err.Error())
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	var decoded any = string(respBody)
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var parsed any
		if err := json.Unmarshal(respBody, &parsed); err == nil {
			decoded = parsed
		}
	}

	data := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        decoded,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return flow.Result{
			Success: false,
			Data:    data,
			Error:   fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url),
		}
	}
	return flow.Ok(data)
}

// asFloat normalizes the numeric types JSON decoding and Go literals
// produce in config trees.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
