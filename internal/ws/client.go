package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client drives a running display through its web API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadResult is the server's summary of an accepted upload. Fields that
// do not apply to the upload are zero.
type UploadResult struct {
	EventCount     int `json:"event_count"`
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	InvalidEntries int `json:"invalid_entries"`
}

// APIError is a non-200 answer from the server.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.Status, e.Msg) }

// UploadEvents replaces the server's event file with content.
func (c *Client) UploadEvents(ctx context.Context, content string) (UploadResult, error) {
	var res UploadResult
	err := c.post(ctx, "/api/upload/events", map[string]string{"content": content}, &res)
	return res, err
}

// UploadSchedule replaces the server's schedule with content. The server
// checks it against the event file it already has.
func (c *Client) UploadSchedule(ctx context.Context, content string) (UploadResult, error) {
	var res UploadResult
	err := c.post(ctx, "/api/upload/schedule", map[string]string{"content": content}, &res)
	return res, err
}

// UploadCombined replaces both files; the server writes neither unless both
// are valid.
func (c *Client) UploadCombined(ctx context.Context, events, schedule string) (UploadResult, error) {
	var res UploadResult
	err := c.post(ctx, "/api/upload/combined", map[string]string{"events": events, "schedule": schedule}, &res)
	return res, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("ws: %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("ws: %s: read response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Msg: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ws: %s: decode response: %w", path, err)
	}
	return nil
}
