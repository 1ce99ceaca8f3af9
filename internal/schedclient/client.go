// Package schedclient is an HTTP client for the scheduling service. The
// assignment orchestrator uses it as its ConflictChecker in deployments where
// the scheduling service runs as a separate process.
package schedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/catering-scheduler/internal/application"
	"github.com/example/catering-scheduler/internal/scheduler"
)

const defaultTimeout = 5 * time.Second

// Client talks to a remote scheduling service over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout bounds each request. The orchestrator relies on this bound so a
// slow scheduling service degrades instead of hanging assignments.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New builds a client for the scheduling service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type checkConflictsRequest struct {
	ResourceIDs       []int64 `json:"resource_ids"`
	StartTime         string  `json:"start_time"`
	EndTime           string  `json:"end_time"`
	ExcludeScheduleID *int64  `json:"exclude_schedule_id,omitempty"`
}

type conflictPayload struct {
	ResourceID           int64   `json:"resource_id"`
	ResourceName         string  `json:"resource_name"`
	ConflictingEventID   int64   `json:"conflicting_event_id"`
	ConflictingEventName string  `json:"conflicting_event_name"`
	ConflictingTaskID    *int64  `json:"conflicting_task_id,omitempty"`
	ConflictingTaskTitle *string `json:"conflicting_task_title,omitempty"`
	ExistingStartTime    string  `json:"existing_start_time"`
	ExistingEndTime      string  `json:"existing_end_time"`
	RequestedStartTime   string  `json:"requested_start_time"`
	RequestedEndTime     string  `json:"requested_end_time"`
	Message              string  `json:"message"`
}

type checkConflictsResponse struct {
	HasConflicts bool              `json:"has_conflicts"`
	Conflicts    []conflictPayload `json:"conflicts"`
}

// CheckConflicts implements application.ConflictChecker against the remote
// service. Transport failures come back as application.TransportError so the
// orchestrator can apply its degraded-mode policy.
func (c *Client) CheckConflicts(ctx context.Context, input application.ConflictCheckInput) (application.ConflictCheckResult, error) {
	body := checkConflictsRequest{
		ResourceIDs:       input.ResourceIDs,
		StartTime:         input.Start.UTC().Format(time.RFC3339),
		EndTime:           input.End.UTC().Format(time.RFC3339),
		ExcludeScheduleID: input.ExcludeEntryID,
	}

	var payload checkConflictsResponse
	if err := c.postJSON(ctx, "/scheduling/check-conflicts", body, &payload); err != nil {
		return application.ConflictCheckResult{}, err
	}

	result := application.ConflictCheckResult{HasConflicts: payload.HasConflicts}
	for _, conflict := range payload.Conflicts {
		decoded, err := decodeConflict(conflict)
		if err != nil {
			return application.ConflictCheckResult{}, err
		}
		result.Conflicts = append(result.Conflicts, decoded)
	}
	return result, nil
}

type availabilityEntryPayload struct {
	ID         int64   `json:"id"`
	ResourceID int64   `json:"resource_id"`
	EventID    int64   `json:"event_id"`
	EventName  string  `json:"event_name,omitempty"`
	TaskID     *int64  `json:"task_id,omitempty"`
	TaskTitle  *string `json:"task_title,omitempty"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Notes      *string `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type availabilityResponse struct {
	ResourceID int64                      `json:"resource_id"`
	Entries    []availabilityEntryPayload `json:"entries"`
}

// ResourceAvailability fetches the commitments for one resource across a date
// window (inclusive dates).
func (c *Client) ResourceAvailability(ctx context.Context, resourceID int64, startDate, endDate string) ([]application.AvailabilityEntry, error) {
	query := url.Values{}
	query.Set("resource_id", strconv.FormatInt(resourceID, 10))
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)

	var payload availabilityResponse
	if err := c.getJSON(ctx, "/scheduling/resource-availability?"+query.Encode(), &payload); err != nil {
		return nil, err
	}

	entries := make([]application.AvailabilityEntry, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		decoded, err := decodeAvailabilityEntry(entry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, decoded)
	}
	return entries, nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports the remote service's health.
func (c *Client) Health(ctx context.Context) (application.HealthStatus, error) {
	var payload healthResponse
	if err := c.getJSON(ctx, "/health", &payload); err != nil {
		return application.HealthStatus{}, err
	}
	return application.HealthStatus{Status: payload.Status, Database: payload.Database}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &application.TransportError{
			Kind: application.TransportOther,
			Err:  fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyTransportError sorts request failures into the kinds the
// orchestrator's degraded-mode policy distinguishes.
func classifyTransportError(err error) *application.TransportError {
	kind := application.TransportOther

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = application.TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = application.TransportTimeout
	case isConnectionError(err):
		kind = application.TransportConnection
	}
	return &application.TransportError{Kind: kind, Err: err}
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func decodeConflict(payload conflictPayload) (scheduler.Conflict, error) {
	existingStart, err := parseWireTime(payload.ExistingStartTime)
	if err != nil {
		return scheduler.Conflict{}, err
	}
	existingEnd, err := parseWireTime(payload.ExistingEndTime)
	if err != nil {
		return scheduler.Conflict{}, err
	}
	requestedStart, err := parseWireTime(payload.RequestedStartTime)
	if err != nil {
		return scheduler.Conflict{}, err
	}
	requestedEnd, err := parseWireTime(payload.RequestedEndTime)
	if err != nil {
		return scheduler.Conflict{}, err
	}
	return scheduler.Conflict{
		ResourceID:     payload.ResourceID,
		ResourceName:   payload.ResourceName,
		EventID:        payload.ConflictingEventID,
		EventName:      payload.ConflictingEventName,
		TaskID:         payload.ConflictingTaskID,
		TaskTitle:      payload.ConflictingTaskTitle,
		ExistingStart:  existingStart,
		ExistingEnd:    existingEnd,
		RequestedStart: requestedStart,
		RequestedEnd:   requestedEnd,
		Message:        payload.Message,
	}, nil
}

func decodeAvailabilityEntry(payload availabilityEntryPayload) (application.AvailabilityEntry, error) {
	start, err := parseWireTime(payload.StartTime)
	if err != nil {
		return application.AvailabilityEntry{}, err
	}
	end, err := parseWireTime(payload.EndTime)
	if err != nil {
		return application.AvailabilityEntry{}, err
	}
	createdAt, err := parseWireTime(payload.CreatedAt)
	if err != nil {
		return application.AvailabilityEntry{}, err
	}
	updatedAt, err := parseWireTime(payload.UpdatedAt)
	if err != nil {
		return application.AvailabilityEntry{}, err
	}
	return application.AvailabilityEntry{
		EntryID:    payload.ID,
		ResourceID: payload.ResourceID,
		EventID:    payload.EventID,
		EventName:  payload.EventName,
		TaskID:     payload.TaskID,
		TaskTitle:  payload.TaskTitle,
		Start:      start,
		End:        end,
		Notes:      payload.Notes,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func parseWireTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return parsed, nil
}
