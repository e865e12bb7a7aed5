// Package tools defines the boundary to the vendor platform. The core hands
// an admitted invocation plus the tenant's live credential to an Executor
// and treats the call as opaque: it either returns data or fails.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Invocation is one agent tool call after admission.
type Invocation struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Executor performs the outbound vendor-platform call.
type Executor interface {
	Execute(ctx context.Context, credential string, inv Invocation) (json.RawMessage, error)
}

// HTTPExecutor forwards invocations to the vendor API over HTTP, presenting
// the tenant's credential on each call.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExecutor creates an executor against the given vendor API base URL.
func NewHTTPExecutor(baseURL string) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute posts the invocation arguments to the vendor endpoint for the tool.
func (e *HTTPExecutor) Execute(ctx context.Context, credential string, inv Invocation) (json.RawMessage, error) {
	body := inv.Args
	if body == nil {
		body = json.RawMessage(`{}`)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/"+inv.Tool, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build vendor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", credential)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor call: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read vendor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vendor responded %d", resp.StatusCode)
	}
	return payload, nil
}

var _ Executor = (*HTTPExecutor)(nil)
