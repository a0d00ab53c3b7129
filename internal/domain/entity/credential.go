package entity

import "time"

// Credential is a stored OAuth token for the mail, storage and ledger APIs
type Credential struct {
	Key          string    `json:"key"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExpiresWithin reports whether the access token expires before now+skew.
// A zero expiry never expires.
func (c *Credential) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !c.Expiry.After(now.Add(skew))
}

// CredentialStatus is the externally visible state of the stored credential
type CredentialStatus struct {
	Stored      bool       `json:"stored"`
	Expired     bool       `json:"expired"`
	Refreshable bool       `json:"refreshable"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
