package verifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hotmartSecret = "hottok-configured-value"

var hotmartBody = []byte(`{"id":"c9d8e7f6","event":"PURCHASE_APPROVED","creation_date":1700000000000,"data":{"purchase":{"transaction":"HP0001"}},"hottok":"hottok-configured-value"}`)

func TestHotmartVerify(t *testing.T) {
	v := NewHotmartVerifier()

	// No signature header is used; the token rides in the body.
	assert.Equal(t, "", v.SignatureHeader())
	assert.True(t, v.Verify("", hotmartBody, hotmartSecret))

	assert.False(t, v.Verify("", hotmartBody, "different-token"))
	assert.False(t, v.Verify("", []byte(`{"event":"PURCHASE_APPROVED"}`), hotmartSecret), "missing hottok fails closed")
	assert.False(t, v.Verify("", []byte("not json at all"), hotmartSecret))
	assert.False(t, v.Verify("", hotmartBody, ""), "unconfigured secret fails closed")
}

func TestHotmartExtractEvent(t *testing.T) {
	v := NewHotmartVerifier()

	event, err := v.ExtractEvent(hotmartBody)
	require.NoError(t, err)

	assert.Equal(t, "PURCHASE_APPROVED", event.Type)
	assert.Equal(t, "c9d8e7f6", event.ExternalID)
	assert.Equal(t, time.UnixMilli(1700000000000), event.Timestamp)
	assert.JSONEq(t, `{"purchase":{"transaction":"HP0001"}}`, string(event.Data))
}

func TestHotmartExtractEvent_Invalid(t *testing.T) {
	v := NewHotmartVerifier()

	_, err := v.ExtractEvent([]byte("<xml/>"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, provider := range []string{"stripe", "cartpanda", "hotmart"} {
		v, ok := r.Lookup(provider)
		require.True(t, ok, provider)
		assert.Equal(t, provider, v.Provider())
	}

	_, ok := r.Lookup("paypal")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"stripe", "cartpanda", "hotmart"}, r.Providers())
}
