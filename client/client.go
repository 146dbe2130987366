// Package client talks to the Finite Life HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"finite-life/finitelife/models"
	"finite-life/finitelife/services"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string `json:"error"`
	Field   string `json:"field"`
	Rule    string `json:"rule"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d: %s (%s %s)", e.Status, e.Message, e.Field, e.Rule)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Client calls the API with a bearer token
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the given address or URL
func NewClient(addr, token string) *Client {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{baseURL: baseURL, token: token, client: &http.Client{}}
}

// SetToken replaces the session token used for later calls
func (c *Client) SetToken(token string) {
	c.token = token
}

// SignIn exchanges credentials for a session and keeps its token
func (c *Client) SignIn(ctx context.Context, email, password string) (services.AuthSession, error) {
	var session services.AuthSession
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &session); err != nil {
		return services.AuthSession{}, err
	}
	c.token = session.Token
	return session, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, "/api/v1/user", nil, &user)
	return user, err
}

func (c *Client) Settings(ctx context.Context) (models.UserSettings, error) {
	var settings models.UserSettings
	err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &settings)
	return settings, err
}

func (c *Client) UpsertSettings(ctx context.Context, settings map[string]interface{}) (models.UserSettings, error) {
	var saved models.UserSettings
	err := c.do(ctx, http.MethodPut, "/api/v1/settings", settings, &saved)
	return saved, err
}

func (c *Client) Life(ctx context.Context) (services.LifeSummary, error) {
	var summary services.LifeSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/life", nil, &summary)
	return summary, err
}

func (c *Client) LifeGrid(ctx context.Context) (services.LifeGrid, error) {
	var grid services.LifeGrid
	err := c.do(ctx, http.MethodGet, "/api/v1/life/grid", nil, &grid)
	return grid, err
}

// Tasks lists tasks, optionally only those with status
func (c *Client) Tasks(ctx context.Context, status string) ([]models.Task, error) {
	path := "/api/v1/tasks"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var tasks []models.Task
	err := c.do(ctx, http.MethodGet, path, nil, &tasks)
	return tasks, err
}

func (c *Client) TaskTree(ctx context.Context) ([]*services.TaskNode, error) {
	var tree []*services.TaskNode
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks/tree", nil, &tree)
	return tree, err
}

func (c *Client) Task(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, task map[string]interface{}) (models.Task, error) {
	var created models.Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks", task, &created)
	return created, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, updates map[string]interface{}) (models.Task, error) {
	var updated models.Task
	err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(id), updates, &updated)
	return updated, err
}

func (c *Client) DecrementDeadline(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(id)+"/minus-one", nil, &task)
	return task, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readErrorResponse(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func readErrorResponse(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err == nil && len(data) > 0 {
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
