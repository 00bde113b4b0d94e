package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Client is the interface the orchestrator uses to reach remote researchers.
type Client interface {
	// Run asks the researcher at endpoint to investigate a topic and waits
	// for the task to finish.
	Run(ctx context.Context, endpoint string, req RunRequest) (*Task, error)

	// Get retrieves a task by ID.
	Get(ctx context.Context, endpoint string, req GetRequest) (*Task, error)

	// List queries tasks from a researcher.
	List(ctx context.Context, endpoint string, req ListRequest) (*ListResponse, error)

	// Cancel cancels a running task.
	Cancel(ctx context.Context, endpoint string, req CancelRequest) (*Task, error)

	// Discover fetches the researcher Card from its well-known URI.
	Discover(ctx context.Context, baseURL string) (*Card, error)
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// HTTPClient implements Client using HTTP/JSON-RPC.
type HTTPClient struct {
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a researcher client. Research runs are long, so the
// default timeout is generous; callers bound each run with a context.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run calls research/run.
func (c *HTTPClient) Run(ctx context.Context, endpoint string, req RunRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodRun, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Get calls research/get.
func (c *HTTPClient) Get(ctx context.Context, endpoint string, req GetRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodGet, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// List calls research/list.
func (c *HTTPClient) List(ctx context.Context, endpoint string, req ListRequest) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call(ctx, endpoint, MethodList, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel calls research/cancel.
func (c *HTTPClient) Cancel(ctx context.Context, endpoint string, req CancelRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodCancel, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Discover fetches the researcher Card.
func (c *HTTPClient) Discover(ctx context.Context, baseURL string) (*Card, error) {
	url := strings.TrimRight(baseURL, "/") + CardPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("worker: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("worker: discover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("worker: discover: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("worker: decode card: %w", err)
	}
	return &card, nil
}

func (c *HTTPClient) nextID() int64 {
	return c.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params any, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("worker: marshal params: %w", err)
	}

	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return fmt.Errorf("worker: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("worker: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("worker: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("worker: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("worker: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("worker: decode result: %w", err)
		}
	}
	return nil
}

// RPCError represents a JSON-RPC error returned by a researcher.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("worker: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("worker: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
