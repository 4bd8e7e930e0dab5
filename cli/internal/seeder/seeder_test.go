package seeder

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paystream-labs/paystream/cli/internal/client"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

// delivery is one request captured by the fake webhook service.
type delivery struct {
	provider   string
	externalID string
	eventType  string
}

// fakeWebhookService verifies incoming deliveries with the real provider
// strategies and records what it accepted, mimicking the ingestion endpoint.
type fakeWebhookService struct {
	mu       sync.Mutex
	secret   string
	accepted []delivery
	rejected int
}

func (f *fakeWebhookService) handler() http.Handler {
	registry := verifier.DefaultRegistry()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		v, ok := registry.Lookup(provider)
		if !ok {
			http.Error(w, `{"error":"unknown provider"}`, http.StatusBadRequest)
			return
		}

		body, _ := io.ReadAll(r.Body)
		signature := ""
		if h := v.SignatureHeader(); h != "" {
			signature = r.Header.Get(h)
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		if !v.Verify(signature, body, f.secret) {
			f.rejected++
			http.Error(w, `{"error":"invalid signature"}`, http.StatusBadRequest)
			return
		}
		event, err := v.ExtractEvent(body)
		if err != nil {
			f.rejected++
			http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
			return
		}
		f.accepted = append(f.accepted, delivery{
			provider:   provider,
			externalID: event.ExternalID,
			eventType:  event.Type,
		})

		json.NewEncoder(w).Encode(map[string]any{
			"received": true,
			"eventId":  uuid.New().String(),
		})
	})
}

func startFakeService(t *testing.T, secret string) (*fakeWebhookService, string) {
	t.Helper()
	f := &fakeWebhookService{secret: secret}

	mux := http.NewServeMux()
	mux.Handle("POST /webhooks/{provider}", f.handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return f, srv.URL
}

func TestSeeder_StripeDeliveriesVerify(t *testing.T) {
	f, url := startFakeService(t, "whsec_seed")

	s := New(Config{Provider: "stripe", Secret: "whsec_seed", Count: 5}, client.NewWebhookClient(url))
	result, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 5, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.EventIDs, 5)
	require.Len(t, f.accepted, 5)

	seen := map[string]bool{}
	for _, d := range f.accepted {
		assert.Equal(t, "stripe", d.provider)
		assert.NotEmpty(t, d.externalID)
		assert.NotEmpty(t, d.eventType)
		assert.False(t, seen[d.externalID], "external ids should be unique")
		seen[d.externalID] = true
	}
}

func TestSeeder_CartpandaDeliveriesVerify(t *testing.T) {
	f, url := startFakeService(t, "cp_secret")

	s := New(Config{Provider: "cartpanda", Secret: "cp_secret", Count: 3}, client.NewWebhookClient(url))
	result, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 3, result.Sent)
	assert.Len(t, f.accepted, 3)
}

func TestSeeder_HotmartDeliveriesVerify(t *testing.T) {
	f, url := startFakeService(t, "hottok_secret")

	s := New(Config{Provider: "hotmart", Secret: "hottok_secret", Count: 2}, client.NewWebhookClient(url))
	result, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	require.Len(t, f.accepted, 2)
	assert.Equal(t, "hotmart", f.accepted[0].provider)
}

func TestSeeder_WrongSecretCountsFailures(t *testing.T) {
	f, url := startFakeService(t, "whsec_real")

	s := New(Config{Provider: "stripe", Secret: "whsec_wrong", Count: 3}, client.NewWebhookClient(url))
	result, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, 3, f.rejected)
}

func TestSeeder_IntervalPacesDeliveries(t *testing.T) {
	_, url := startFakeService(t, "whsec_seed")

	start := time.Now()
	s := New(Config{Provider: "stripe", Secret: "whsec_seed", Count: 3, Interval: 20 * time.Millisecond},
		client.NewWebhookClient(url))
	result, err := s.Run()

	require.NoError(t, err)
	assert.Equal(t, 3, result.Sent)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSeeder_UnsupportedProvider(t *testing.T) {
	s := New(Config{Provider: "paddle", Secret: "x", Count: 1}, client.NewWebhookClient("http://unused"))
	_, err := s.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
