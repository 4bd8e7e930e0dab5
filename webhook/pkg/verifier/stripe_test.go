package verifier

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stripeSecret = "whsec_test_secret"

var stripeBody = []byte(`{"id":"evt_1A2b3C","type":"invoice.paid","created":1700000000,"data":{"object":{"id":"in_123"}}}`)

func TestStripeVerify_ValidSignature(t *testing.T) {
	v := NewStripeVerifier()

	header := SignPayload(stripeSecret, stripeBody, 1700000000)
	assert.True(t, v.Verify(header, stripeBody, stripeSecret))
}

func TestStripeVerify_AnyV1Matches(t *testing.T) {
	v := NewStripeVerifier()

	valid := SignPayload(stripeSecret, stripeBody, 1700000000)
	// Prepend a stale v1 from an old key rotation; the valid one still wins.
	header := fmt.Sprintf("t=1700000000,v1=%064x,%s", 0, valid[len("t=1700000000,"):])
	assert.True(t, v.Verify(header, stripeBody, stripeSecret))
}

func TestStripeVerify_Mutations(t *testing.T) {
	v := NewStripeVerifier()
	header := SignPayload(stripeSecret, stripeBody, 1700000000)

	tests := []struct {
		name   string
		header string
		body   []byte
		secret string
	}{
		{"mutated body", header, append([]byte("x"), stripeBody...), stripeSecret},
		{"wrong secret", header, stripeBody, "whsec_other"},
		{"mutated signature", header[:len(header)-1] + "0", stripeBody, stripeSecret},
		{"wrong timestamp", SignPayload(stripeSecret, stripeBody, 1700000001)[:12] + header[12:], stripeBody, stripeSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.Verify(tt.header, tt.body, tt.secret))
		})
	}
}

func TestStripeVerify_MalformedHeaders(t *testing.T) {
	v := NewStripeVerifier()

	for _, header := range []string{
		"",
		"garbage",
		"t=1700000000",                    // no signature
		"v1=deadbeef",                     // no timestamp
		"t=1700000000,v1=not-hex-at-all!", // undecodable signature
	} {
		assert.False(t, v.Verify(header, stripeBody, stripeSecret), "header %q", header)
	}
}

func TestStripeExtractEvent(t *testing.T) {
	v := NewStripeVerifier()

	event, err := v.ExtractEvent(stripeBody)
	require.NoError(t, err)

	assert.Equal(t, "invoice.paid", event.Type)
	assert.Equal(t, "evt_1A2b3C", event.ExternalID)
	assert.Equal(t, time.Unix(1700000000, 0), event.Timestamp)
	assert.JSONEq(t, `{"object":{"id":"in_123"}}`, string(event.Data))
}

func TestStripeExtractEvent_Invalid(t *testing.T) {
	v := NewStripeVerifier()

	_, err := v.ExtractEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestStripeExtractEvent_NoID(t *testing.T) {
	v := NewStripeVerifier()

	event, err := v.ExtractEvent([]byte(`{"type":"charge.refunded"}`))
	require.NoError(t, err)
	assert.Empty(t, event.ExternalID)
}
