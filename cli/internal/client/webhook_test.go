package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks/stripe", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "t=1,v1=abc", r.Header.Get("Stripe-Signature"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"id":"evt_1","type":"charge.succeeded"}`, string(body))

		json.NewEncoder(w).Encode(map[string]any{
			"received": true,
			"eventId":  "deadbeef-0000-0000-0000-000000000000",
		})
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	id, err := client.Deliver("stripe", "Stripe-Signature", "t=1,v1=abc",
		[]byte(`{"id":"evt_1","type":"charge.succeeded"}`))

	require.NoError(t, err)
	assert.Equal(t, "deadbeef-0000-0000-0000-000000000000", id)
}

func TestDeliver_NoSignatureHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hotmart carries its token in the body, not a header.
		assert.Empty(t, r.Header.Get("X-Webhook-Signature"))
		json.NewEncoder(w).Encode(map[string]any{"received": true, "eventId": "x"})
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	_, err := client.Deliver("hotmart", "", "", []byte(`{"hottok":"tok"}`))
	require.NoError(t, err)
}

func TestDeliver_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid signature"})
	}))
	defer server.Close()

	client := NewWebhookClient(server.URL)
	_, err := client.Deliver("stripe", "Stripe-Signature", "garbage", []byte(`{}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
	assert.Contains(t, err.Error(), "400")
}
