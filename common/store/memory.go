package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paystream-labs/paystream/common/models"
)

// MemoryStore is an in-memory Store for tests and local development. It
// mirrors the postgres semantics, including the uniqueness guard on
// (provider, external_event_id) and the atomic pending -> processing claim.
type MemoryStore struct {
	mu          sync.Mutex
	events      map[string]*models.WebhookEvent
	byExternal  map[string]string // provider + "\x00" + externalEventID -> event id
	credentials map[string]*models.IntegrationCredential
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:      make(map[string]*models.WebhookEvent),
		byExternal:  make(map[string]string),
		credentials: make(map[string]*models.IntegrationCredential),
	}
}

func externalKey(provider, externalEventID string) string {
	return provider + "\x00" + externalEventID
}

func credentialKey(platform, credentialType, environment string) string {
	return strings.Join([]string{platform, credentialType, environment}, "\x00")
}

func copyEvent(e *models.WebhookEvent) *models.WebhookEvent {
	c := *e
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// CreateEvent mirrors the postgres unique index: inserting a second event
// with the same (provider, external_event_id) fails with ErrDuplicateEvent.
func (s *MemoryStore) CreateEvent(ctx context.Context, e *models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ExternalEventID != "" {
		key := externalKey(e.Provider, e.ExternalEventID)
		if _, exists := s.byExternal[key]; exists {
			return ErrDuplicateEvent
		}
		s.byExternal[key] = e.ID
	}

	s.events[e.ID] = copyEvent(e)
	return nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (s *MemoryStore) FindByExternalID(ctx context.Context, provider, externalEventID string) (*models.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byExternal[externalKey(provider, externalEventID)]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(s.events[id]), nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.WebhookEvent, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*models.WebhookEvent{}
	for _, e := range s.events {
		if filter.Provider != "" && e.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		matched = append(matched, copyEvent(e))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})

	total := len(matched)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return matched[offset:end], total, nil
}

func (s *MemoryStore) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok || (e.Status != models.StatusPending && e.Status != models.StatusFailed) {
		return ErrEventNotFound
	}
	e.Status = models.StatusProcessing
	return nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	now := time.Now()
	e.Status = models.StatusProcessed
	e.ErrorMessage = ""
	e.ProcessedAt = &now
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, errorMessage string, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.Status = models.StatusFailed
	e.ErrorMessage = errorMessage
	e.RetryCount = retryCount
	return nil
}

func (s *MemoryStore) ResetForRetry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	if e.Status == models.StatusProcessed {
		return ErrEventNotFound
	}
	e.Status = models.StatusPending
	e.ErrorMessage = ""
	return nil
}

func (s *MemoryStore) GetCredential(ctx context.Context, platform, credentialType, environment string) (*models.IntegrationCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[credentialKey(platform, credentialType, environment)]
	if !ok || !c.Active || c.Expired(time.Now()) {
		return nil, ErrCredentialNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *MemoryStore) UpsertCredential(ctx context.Context, cred *models.IntegrationCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *cred
	copied.UpdatedAt = time.Now()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = copied.UpdatedAt
	}
	s.credentials[credentialKey(cred.Platform, cred.CredentialType, cred.Environment)] = &copied
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
