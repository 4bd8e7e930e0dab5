package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StripeVerifier checks Stripe's timestamped HMAC scheme. The signature
// header is a comma-separated list of key=value pairs carrying a timestamp
// and one or more v1 signatures:
//
//	t=1614556800,v1=5257a869e7...,v1=091a1029c5...
//
// The signed payload is "{t}.{rawBody}"; verification succeeds if any v1
// value matches the recomputed HMAC-SHA256 in constant time.
type StripeVerifier struct{}

func NewStripeVerifier() *StripeVerifier {
	return &StripeVerifier{}
}

func (v *StripeVerifier) Provider() string {
	return "stripe"
}

func (v *StripeVerifier) SignatureHeader() string {
	return "Stripe-Signature"
}

func (v *StripeVerifier) Verify(signature string, body []byte, secret string) bool {
	timestamp, candidates := parseStripeHeader(signature)
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return true
		}
	}
	return false
}

// parseStripeHeader returns the first timestamp and all v1 signatures found.
// Unknown scheme elements are ignored per Stripe's forward-compatibility
// guidance.
func parseStripeHeader(header string) (timestamp string, signatures []string) {
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			if timestamp == "" {
				timestamp = parts[1]
			}
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}
	return timestamp, signatures
}

type stripePayload struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

func (v *StripeVerifier) ExtractEvent(body []byte) (*Event, error) {
	var payload stripePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse stripe payload: %w", err)
	}

	event := &Event{
		Type:       payload.Type,
		ExternalID: payload.ID,
		Data:       payload.Data,
		Timestamp:  time.Now(),
	}
	if payload.Created > 0 {
		event.Timestamp = time.Unix(payload.Created, 0)
	}
	if event.Type == "" {
		event.Type = "stripe.unknown"
	}
	return event, nil
}

// SignPayload computes a valid Stripe-Signature header value for body at the
// given unix timestamp. Used by the seeder and tests.
func SignPayload(secret string, body []byte, unixTime int64) string {
	t := strconv.FormatInt(unixTime, 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}
