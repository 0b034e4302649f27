package officesimsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal office simulator HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://127.0.0.1:8080/v0.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Worker represents the API worker model (partial).
type Worker struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Department   string  `json:"department"`
	Role         string  `json:"role"`
	Personality  string  `json:"personality"`
	Mood         float64 `json:"mood"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	State        string  `json:"state"`
	CurrentTask  string  `json:"current_task,omitempty"`
	CurrentRoom  string  `json:"current_room,omitempty"`
	AtOffice     bool    `json:"at_office"`
	Productivity int     `json:"productivity"`
}

// Task represents the API task model (partial).
type Task struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	Duration     int     `json:"duration"`
	SuccessRate  float64 `json:"success_rate"`
	RequiredRole string  `json:"required_role,omitempty"`
	AssignedTo   string  `json:"assigned_to,omitempty"`
	InPool       bool    `json:"in_pool"`
}

// Room represents a floor plan rectangle.
type Room struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Occupants []string `json:"occupants"`
	Events    []string `json:"events"`
}

// Snapshot is the full simulation state.
type Snapshot struct {
	Day                 int      `json:"day"`
	Minute              int      `json:"minute"`
	Clock               string   `json:"clock"`
	Weather             string   `json:"weather"`
	AverageProductivity float64  `json:"average_productivity"`
	PoolSize            int      `json:"pool_size"`
	Rooms               []Room   `json:"rooms"`
	Workers             []Worker `json:"workers"`
	Tasks               []Task   `json:"tasks"`
}

// TickSummary reports what one step changed.
type TickSummary struct {
	Day       int      `json:"day"`
	Minute    int      `json:"minute"`
	Clock     string   `json:"clock"`
	Weather   string   `json:"weather"`
	DayEnded  bool     `json:"day_ended"`
	Completed []string `json:"completed,omitempty"`
	Failed    []string `json:"failed,omitempty"`
	Assigned  []string `json:"assigned,omitempty"`
	Activated []string `json:"activated,omitempty"`
	PoolSize  int      `json:"pool_size"`
}

// Scenario is a registered trigger with its current eligibility.
type Scenario struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	Tasks       int      `json:"tasks"`
	Eligible    bool     `json:"eligible"`
}

// Event represents a journal entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	RunID      string         `json:"run_id"`
	Day        int            `json:"day"`
	Minute     int            `json:"minute"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Snapshot fetches the whole simulation state.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, "snapshot", nil, &resp)
	return resp, err
}

// Worker fetches one worker by id.
func (c *Client) Worker(ctx context.Context, id string) (Worker, error) {
	var resp Worker
	err := c.do(ctx, http.MethodGet, "workers/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Tasks lists tasks, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := "tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Scenarios lists registered scenarios.
func (c *Client) Scenarios(ctx context.Context) ([]Scenario, error) {
	var resp struct {
		Items []Scenario `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "scenarios", nil, &resp)
	return resp.Items, err
}

// Tick advances the simulation by steps of minutes each.
func (c *Client) Tick(ctx context.Context, minutes, steps int) (TickSummary, error) {
	body := map[string]any{
		"minutes": minutes,
		"steps":   steps,
	}
	var resp TickSummary
	err := c.do(ctx, http.MethodPost, "tick", body, &resp)
	return resp, err
}

// StartDay recalls off-duty workers.
func (c *Client) StartDay(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "start-day", nil, nil)
}

// Activate fires a scenario and returns the created task ids. force skips
// the requirements check.
func (c *Client) Activate(ctx context.Context, scenarioID string, force bool) ([]string, error) {
	var resp struct {
		TaskIDs []string `json:"task_ids"`
	}
	endpoint := fmt.Sprintf("scenarios/%s/activate", url.PathEscape(scenarioID))
	if force {
		endpoint += "?force=true"
	}
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.TaskIDs, err
}

// Events returns recent events of the current run.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
