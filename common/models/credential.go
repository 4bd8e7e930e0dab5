package models

import "time"

// Credential types known to the ingestion core. Administrative flows may
// store others; the pipeline only ever reads webhook signing secrets.
const (
	CredentialWebhookSecret = "webhook_secret"
	CredentialAPIKey        = "api_key"
)

// IntegrationCredential is an encrypted third-party secret. The value column
// only ever holds a vault ciphertext envelope; plaintext never touches
// storage.
type IntegrationCredential struct {
	Platform       string     `json:"platform"`
	CredentialType string     `json:"credential_type"`
	Environment    string     `json:"environment"`
	EncryptedValue string     `json:"-"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Expired reports whether the credential has an expiry in the past.
func (c *IntegrationCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
