// Package seeder generates realistic signed webhook deliveries for load and
// integration testing against a running webhook service.
package seeder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/paystream-labs/paystream/cli/internal/client"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

// Config controls what the seeder sends.
type Config struct {
	// Provider selects the payload shape and signing scheme.
	Provider string

	// Secret signs the generated payloads; must match the credential
	// configured on the target service.
	Secret string

	// Count is the number of deliveries to send.
	Count int

	// Interval is the pause between deliveries.
	Interval time.Duration
}

// Result summarizes a seeding run.
type Result struct {
	Sent     int
	Failed   int
	EventIDs []string
}

// Seeder generates and delivers fake provider events.
type Seeder struct {
	cfg    Config
	client *client.WebhookClient
	faker  *gofakeit.Faker
}

func New(cfg Config, wc *client.WebhookClient) *Seeder {
	return &Seeder{
		cfg:    cfg,
		client: wc,
		faker:  gofakeit.New(0),
	}
}

// Run sends the configured number of deliveries.
func (s *Seeder) Run() (*Result, error) {
	result := &Result{}

	for i := 0; i < s.cfg.Count; i++ {
		if i > 0 && s.cfg.Interval > 0 {
			time.Sleep(s.cfg.Interval)
		}

		body, header, signature, err := s.generate()
		if err != nil {
			return result, fmt.Errorf("generate delivery %d: %w", i+1, err)
		}

		eventID, err := s.client.Deliver(s.cfg.Provider, header, signature, body)
		if err != nil {
			result.Failed++
			continue
		}
		result.Sent++
		result.EventIDs = append(result.EventIDs, eventID)
	}

	return result, nil
}

// generate builds one signed payload for the configured provider.
func (s *Seeder) generate() (body []byte, header, signature string, err error) {
	switch s.cfg.Provider {
	case "stripe":
		return s.stripeDelivery()
	case "cartpanda":
		return s.cartpandaDelivery()
	case "hotmart":
		return s.hotmartDelivery()
	default:
		return nil, "", "", fmt.Errorf("unsupported provider %q", s.cfg.Provider)
	}
}

var stripeEventTypes = []string{
	"payment_intent.succeeded",
	"charge.succeeded",
	"charge.refunded",
	"invoice.paid",
	"customer.subscription.created",
	"customer.subscription.deleted",
}

func (s *Seeder) stripeDelivery() ([]byte, string, string, error) {
	now := time.Now().Unix()
	payload := map[string]any{
		"id":      "evt_" + s.faker.LetterN(24),
		"type":    s.faker.RandomString(stripeEventTypes),
		"created": now,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "ch_" + s.faker.LetterN(24),
				"amount":   s.faker.Number(100, 100000),
				"currency": s.faker.CurrencyShort(),
				"customer": "cus_" + s.faker.LetterN(14),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", "", err
	}
	return body, "Stripe-Signature", verifier.SignPayload(s.cfg.Secret, body, now), nil
}

var cartpandaEventTypes = []string{
	"order.paid",
	"order.refunded",
	"cart.abandoned",
}

func (s *Seeder) cartpandaDelivery() ([]byte, string, string, error) {
	payload := map[string]any{
		"event": s.faker.RandomString(cartpandaEventTypes),
		"id":    s.faker.Number(100000, 999999),
		"order": map[string]any{
			"total":    fmt.Sprintf("%.2f", s.faker.Float64Range(10, 500)),
			"currency": "BRL",
			"email":    s.faker.Email(),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", "", err
	}
	return body, "X-Cartpanda-Signature", verifier.SignCartpandaPayload(s.cfg.Secret, body), nil
}

var hotmartEventTypes = []string{
	"PURCHASE_COMPLETE",
	"PURCHASE_REFUNDED",
	"SUBSCRIPTION_CANCELLATION",
}

func (s *Seeder) hotmartDelivery() ([]byte, string, string, error) {
	payload := map[string]any{
		"id":            s.faker.UUID(),
		"event":         s.faker.RandomString(hotmartEventTypes),
		"creation_date": time.Now().UnixMilli(),
		"data": map[string]any{
			"purchase": map[string]any{
				"price": map[string]any{
					"value":         s.faker.Float64Range(10, 500),
					"currency_code": "BRL",
				},
			},
			"buyer": map[string]any{
				"email": s.faker.Email(),
			},
		},
		"hottok": s.cfg.Secret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", "", err
	}
	// hotmart carries its credential in the body; no signature header.
	return body, "", "", nil
}
