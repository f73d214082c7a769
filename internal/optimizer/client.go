package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/httpclient"
	"github.com/Lumenline/optimizer-dashboard/internal/rate"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

// Client talks to the external optimizer's HTTP API: triggering runs and
// polling run status for deployments whose webhooks cannot reach us.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
	apiKey  string
}

// APIError is the optimizer's 4xx error body surfaced to callers.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("optimizer API %d: %s", e.Status, e.Message)
}

// NewClient builds an optimizer client. baseURL must not be empty.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, baseURL, apiKey string) *Client {
	exec := httpclient.New(
		logger,
		rateMgr,
		&http.Client{Timeout: 15 * time.Second},
		2,
		"optimizer",
		func(status int, body []byte) error {
			apiErr := &APIError{Status: status, Message: string(body)}
			var parsed struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
				apiErr.Message = parsed.Message
			}
			return apiErr
		},
	)
	return &Client{
		logger:  logger,
		exec:    exec,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// TriggerRequest asks the optimizer to start a run.
type TriggerRequest struct {
	ProjectID   string `json:"project_id"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// TriggerResponse is the optimizer's acknowledgement.
type TriggerResponse struct {
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// TriggerRun starts an optimization run for a project.
func (c *Client) TriggerRun(ctx context.Context, req TriggerRequest) (*TriggerResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/runs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out TriggerResponse
	if err := c.exec.DoJSON(ctx, httpReq, "optimizer:trigger", &out); err != nil {
		return nil, err
	}
	c.logger.Info("optimizer.run_triggered",
		zap.String("run_id", out.RunID),
		zap.String("project_id", req.ProjectID))
	return &out, nil
}

// RunStatus fetches the optimizer's current view of a run. The response is
// the same shape the optimizer posts to the results webhook.
func (c *Client) RunStatus(ctx context.Context, runID string) (*model.ResultPosting, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/v1/runs/"+runID, nil)
	if err != nil {
		return nil, err
	}

	var out model.ResultPosting
	if err := c.exec.DoJSON(ctx, httpReq, "optimizer:status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}
