// Package client wraps the PayStream HTTP APIs for the CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paystream-labs/paystream/common/models"
)

// AdminClient talks to the webhook service's operator API.
type AdminClient struct {
	baseURL string
	client  *http.Client
}

// EventsResponse is the operator API event listing envelope.
type EventsResponse struct {
	Events []models.WebhookEvent `json:"events"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func NewAdminClient(baseURL string) *AdminClient {
	return &AdminClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *AdminClient) doRequest(method, path, token string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.client.Do(req)
}

func decodeOrError(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with HTTP %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListEvents fetches events matching the given filters.
func (c *AdminClient) ListEvents(token, provider, status string, limit, offset int) (*EventsResponse, error) {
	q := url.Values{}
	if provider != "" {
		q.Set("provider", provider)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	path := "/admin/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.doRequest(http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var out EventsResponse
	if err := decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEvent fetches one event by id.
func (c *AdminClient) GetEvent(token, id string) (*models.WebhookEvent, error) {
	resp, err := c.doRequest(http.MethodGet, "/admin/events/"+url.PathEscape(id), token, nil)
	if err != nil {
		return nil, err
	}

	var out models.WebhookEvent
	if err := decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryEvent asks the service to re-enqueue a failed event.
func (c *AdminClient) RetryEvent(token, id string) error {
	resp, err := c.doRequest(http.MethodPost, "/admin/events/"+url.PathEscape(id)+"/retry", token, nil)
	if err != nil {
		return err
	}
	return decodeOrError(resp, nil)
}
