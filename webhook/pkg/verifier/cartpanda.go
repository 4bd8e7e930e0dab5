package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// CartpandaVerifier checks Cartpanda's direct HMAC scheme: the signature
// header is the hex HMAC-SHA256 of the raw body, nothing else.
type CartpandaVerifier struct{}

func NewCartpandaVerifier() *CartpandaVerifier {
	return &CartpandaVerifier{}
}

func (v *CartpandaVerifier) Provider() string {
	return "cartpanda"
}

func (v *CartpandaVerifier) SignatureHeader() string {
	return "X-Cartpanda-Signature"
}

func (v *CartpandaVerifier) Verify(signature string, body []byte, secret string) bool {
	if signature == "" {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

type cartpandaPayload struct {
	Event string          `json:"event"`
	ID    json.RawMessage `json:"id"`
	Order json.RawMessage `json:"order"`
}

func (v *CartpandaVerifier) ExtractEvent(body []byte) (*Event, error) {
	var payload cartpandaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse cartpanda payload: %w", err)
	}

	event := &Event{
		Type:       payload.Event,
		ExternalID: rawScalar(payload.ID),
		Data:       payload.Order,
		Timestamp:  time.Now(),
	}
	if event.Type == "" {
		event.Type = "cartpanda.unknown"
	}
	if len(event.Data) == 0 {
		event.Data = body
	}
	return event, nil
}

// rawScalar renders a JSON scalar (string or number) as its plain string
// form. Cartpanda delivers numeric ids but shop apps have been seen sending
// them quoted.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// SignCartpandaPayload computes a valid signature header value for body.
// Used by the seeder and tests.
func SignCartpandaPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
