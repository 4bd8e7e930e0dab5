package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
	"github.com/paystream-labs/paystream/common/queue"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/common/vault"
	"github.com/paystream-labs/paystream/webhook/internal/service"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

func newAdminFixture(t *testing.T) (*AdminHandler, *store.MemoryStore, *queue.MemoryQueue) {
	t.Helper()

	codec, err := vault.New(testMasterKey)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	jobs := queue.NewMemoryQueue(16)
	logger := logging.New(slog.LevelError, "text")

	svc, err := service.NewIngestService(service.Config{
		Providers:   []string{"stripe"},
		Environment: "production",
	}, verifier.DefaultRegistry(), codec, st, jobs, logger)
	require.NoError(t, err)

	return NewAdminHandler(svc, logger), st, jobs
}

func seedEvent(t *testing.T, st *store.MemoryStore, id, provider string, status models.EventStatus) {
	t.Helper()

	event := &models.WebhookEvent{
		ID:              id,
		Provider:        provider,
		ExternalEventID: "ext-" + id,
		EventType:       "charge.succeeded",
		Payload:         json.RawMessage(`{}`),
		Status:          models.StatusPending,
	}
	require.NoError(t, st.CreateEvent(context.Background(), event))

	switch status {
	case models.StatusProcessing:
		require.NoError(t, st.MarkProcessing(context.Background(), id))
	case models.StatusProcessed:
		require.NoError(t, st.MarkProcessing(context.Background(), id))
		require.NoError(t, st.MarkProcessed(context.Background(), id))
	case models.StatusFailed:
		require.NoError(t, st.MarkProcessing(context.Background(), id))
		require.NoError(t, st.MarkFailed(context.Background(), id, "handler failed", 1))
	}
}

func TestListEvents(t *testing.T) {
	handler, st, _ := newAdminFixture(t)
	seedEvent(t, st, "ev-1", "stripe", models.StatusPending)
	seedEvent(t, st, "ev-2", "stripe", models.StatusFailed)
	seedEvent(t, st, "ev-3", "hotmart", models.StatusPending)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int
	}{
		{name: "all events", query: "", wantCode: http.StatusOK, wantTotal: 3},
		{name: "filter by provider", query: "?provider=stripe", wantCode: http.StatusOK, wantTotal: 2},
		{name: "filter by status", query: "?status=failed", wantCode: http.StatusOK, wantTotal: 1},
		{name: "combined filters", query: "?provider=hotmart&status=pending", wantCode: http.StatusOK, wantTotal: 1},
		{name: "invalid status", query: "?status=bogus", wantCode: http.StatusBadRequest},
		{name: "invalid limit", query: "?limit=zero", wantCode: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/events"+tt.query, nil)
			rr := httptest.NewRecorder()
			handler.ListEvents(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp struct {
				Total int `json:"total"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantTotal, resp.Total)
		})
	}
}

func TestGetEvent(t *testing.T) {
	handler, st, _ := newAdminFixture(t)
	seedEvent(t, st, "ev-get", "stripe", models.StatusProcessed)

	req := httptest.NewRequest(http.MethodGet, "/admin/events/ev-get", nil)
	req.SetPathValue("id", "ev-get")
	rr := httptest.NewRecorder()
	handler.GetEvent(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var event models.WebhookEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &event))
	assert.Equal(t, "ev-get", event.ID)
	assert.Equal(t, models.StatusProcessed, event.Status)
}

func TestGetEvent_NotFound(t *testing.T) {
	handler, _, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/events/missing", nil)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()
	handler.GetEvent(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRetryEvent(t *testing.T) {
	handler, st, jobs := newAdminFixture(t)
	seedEvent(t, st, "ev-retry", "stripe", models.StatusFailed)

	req := httptest.NewRequest(http.MethodPost, "/admin/events/ev-retry/retry", nil)
	req.SetPathValue("id", "ev-retry")
	rr := httptest.NewRecorder()
	handler.RetryEvent(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	event, err := st.GetEvent(context.Background(), "ev-retry")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, event.Status)
	assert.Equal(t, 1, jobs.Len())
}

func TestRetryEvent_ProcessedConflicts(t *testing.T) {
	handler, st, jobs := newAdminFixture(t)
	seedEvent(t, st, "ev-done", "stripe", models.StatusProcessed)

	req := httptest.NewRequest(http.MethodPost, "/admin/events/ev-done/retry", nil)
	req.SetPathValue("id", "ev-done")
	rr := httptest.NewRecorder()
	handler.RetryEvent(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Zero(t, jobs.Len())
}

func TestRetryEvent_NotFound(t *testing.T) {
	handler, _, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/events/missing/retry", nil)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()
	handler.RetryEvent(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
