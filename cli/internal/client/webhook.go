package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookClient posts deliveries to the webhook service the way a provider
// would. Used by the seeder.
type WebhookClient struct {
	baseURL string
	client  *http.Client
}

func NewWebhookClient(baseURL string) *WebhookClient {
	return &WebhookClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver posts a signed payload to /webhooks/{provider} and returns the
// assigned event id.
func (c *WebhookClient) Deliver(provider, signatureHeader, signature string, body []byte) (string, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/webhooks/"+provider, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if signatureHeader != "" {
		req.Header.Set(signatureHeader, signature)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Received bool   `json:"received"`
		EventID  string `json:"eventId"`
		Error    string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s (HTTP %d)", out.Error, resp.StatusCode)
	}
	return out.EventID, nil
}
