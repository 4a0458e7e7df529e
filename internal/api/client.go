// Package api is an HTTP client for the task store service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tgienger/tdl/internal/models"
)

// StatusError is returned for any non-2xx response
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// Status is the task store health report
type Status struct {
	Status     string `json:"status"`
	TotalTodos int    `json:"total_todos"`
	Message    string `json:"message"`
}

// Client talks to the task store at BaseURL
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client. A zero timeout means requests are bounded only
// by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

// WithHTTPClient replaces the underlying http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// BaseURL returns the task store address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List returns every task
func (c *Client) List(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create adds a task and returns it with its assigned id
func (c *Client) Create(ctx context.Context, t models.NewTask) (models.Task, error) {
	var out models.Task
	if err := c.do(ctx, http.MethodPost, "/todos", t, &out); err != nil {
		return models.Task{}, err
	}
	return out, nil
}

// Update applies a partial update and returns the stored task
func (c *Client) Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	var out models.Task
	if err := c.do(ctx, http.MethodPut, taskPath(id), patch, &out); err != nil {
		return models.Task{}, err
	}
	return out, nil
}

// Delete removes a task
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// Status reports whether the task store is up
func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/todos/status", nil, &s); err != nil {
		return Status{}, err
	}
	return s, nil
}

func taskPath(id int64) string {
	return "/todos/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e) == nil {
			se.Message = e.Error
		}
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
