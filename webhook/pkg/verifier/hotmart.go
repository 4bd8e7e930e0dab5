package verifier

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"
)

// HotmartVerifier checks Hotmart's shared-secret token scheme. There is no
// signature header; the payload itself carries a "hottok" field that must
// equal the configured secret. Unparseable bodies fail closed.
type HotmartVerifier struct{}

func NewHotmartVerifier() *HotmartVerifier {
	return &HotmartVerifier{}
}

func (v *HotmartVerifier) Provider() string {
	return "hotmart"
}

// SignatureHeader is empty: the credential travels in the body.
func (v *HotmartVerifier) SignatureHeader() string {
	return ""
}

type hotmartPayload struct {
	ID           string          `json:"id"`
	Event        string          `json:"event"`
	CreationDate int64           `json:"creation_date"`
	Data         json.RawMessage `json:"data"`
	Hottok       string          `json:"hottok"`
}

func (v *HotmartVerifier) Verify(signature string, body []byte, secret string) bool {
	var payload hotmartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	if payload.Hottok == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(payload.Hottok), []byte(secret)) == 1
}

func (v *HotmartVerifier) ExtractEvent(body []byte) (*Event, error) {
	var payload hotmartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse hotmart payload: %w", err)
	}

	event := &Event{
		Type:       payload.Event,
		ExternalID: payload.ID,
		Data:       payload.Data,
		Timestamp:  time.Now(),
	}
	if payload.CreationDate > 0 {
		// creation_date is unix milliseconds
		event.Timestamp = time.UnixMilli(payload.CreationDate)
	}
	if event.Type == "" {
		event.Type = "hotmart.unknown"
	}
	if len(event.Data) == 0 {
		event.Data = body
	}
	return event, nil
}
