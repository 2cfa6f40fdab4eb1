package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultURL     = "http://localhost:5001"
	DefaultTimeout = 30 * time.Second
)

// Client talks to the assistant backend. All calls are JSON POSTs to a fixed
// origin; see the api_*.go files for the individual endpoints.
type Client struct {
	baseURL string
	http    *TracedClient
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewTracedClient(timeout),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("%s: encoding request: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Endpoint: path, Code: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(resp.Body, &eb) == nil {
			se.Message = eb.Error
		} else {
			se.Message = strings.TrimSpace(string(resp.Body))
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// checkStatus enforces the {status: "success"} convention shared by the
// profile and email endpoints.
func checkStatus(path, status, message string) error {
	if status == "success" {
		return nil
	}
	if message != "" {
		return fmt.Errorf("%w: %s: %s (%s)", ErrNotSuccess, path, status, message)
	}
	return fmt.Errorf("%w: %s: status %q", ErrNotSuccess, path, status)
}
