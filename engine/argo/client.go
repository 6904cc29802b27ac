package argo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Client is the thin wire layer over the workflow engine's HTTP API. Transport
// and HTTP failures are returned verbatim; no retry happens at this layer.
type Client struct {
	http      *resty.Client
	namespace string
}

// APIError is a non-2xx response from the workflow engine.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("workflow engine returned status %d: %s", e.StatusCode, e.Body)
}

// SubmitWorkflow submits a full workflow definition and returns the
// engine-assigned workflow name.
func (c *Client) SubmitWorkflow(ctx context.Context, def map[string]any) (string, error) {
	var result struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"workflow": def}).
		SetResult(&result).
		Post(fmt.Sprintf("/api/v1/workflows/%s", c.namespace))
	if err != nil {
		return "", err
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}
	if result.Metadata.Name == "" {
		return "", fmt.Errorf("workflow engine response carries no metadata.name")
	}
	return result.Metadata.Name, nil
}

// GetWorkflow fetches a workflow document, optionally projected down to the
// given field mask (e.g. "status.phase", "-status").
func (c *Client) GetWorkflow(ctx context.Context, name, fields string) (map[string]any, error) {
	req := c.http.R().SetContext(ctx)
	if fields != "" {
		req.SetQueryParam("fields", fields)
	}
	resp, err := req.Get(fmt.Sprintf("/api/v1/workflows/%s/%s", c.namespace, name))
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode workflow document: %w", err)
	}
	return doc, nil
}

// PodLogs fetches the log stream for one execution node's container and returns
// its lines in order. The endpoint is line-oriented; each line is either an
// envelope like {"result":{"content":"..."}} or raw text.
func (c *Client) PodLogs(ctx context.Context, wfName, nodeName, container string) ([]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("logOptions.container", container).
		Get(fmt.Sprintf("/api/v1/workflows/%s/%s/%s/log", c.namespace, wfName, nodeName))
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return parseLogLines(resp.String()), nil
}

func parseLogLines(body string) []string {
	var lines []string
	for _, raw := range strings.Split(body, "\n") {
		if raw == "" {
			continue
		}
		var envelope struct {
			Result struct {
				Content string `json:"content"`
			} `json:"result"`
		}
		if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Result.Content != "" {
			lines = append(lines, envelope.Result.Content)
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() < 400 {
		return nil
	}
	return &APIError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
}
