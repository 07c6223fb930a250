package tokenstore

import (
	"strings"
	"time"
)

// StoredToken is the persisted token record of one account. Field names
// follow the stored JSON layout.
type StoredToken struct {
	AccessToken string `json:"access_token"`

	// AccessTokenExp is the expiry instant in epoch milliseconds.
	AccessTokenExp int64 `json:"access_token_exp"`

	// Scope is the space delimited list of granted scopes.
	Scope string `json:"scope"`

	RefreshToken string `json:"refresh_token,omitempty"`

	// GSuite is the Workspace domain of enterprise accounts.
	GSuite string `json:"gsuite,omitempty"`

	// GmailAccountID is the stable account identifier ("sub" claim).
	GmailAccountID string `json:"gmail_account_id,omitempty"`

	LegacyGSuite bool `json:"legacyGsuite,omitempty"`

	// MveloLicenseIssued is the start-of-month instant (epoch ms) of the last
	// successful license check, or 0.
	MveloLicenseIssued int64 `json:"mvelo_license_issued,omitempty"`
}

// Expired reports whether the access token is no longer usable at now.
func (t *StoredToken) Expired(now time.Time) bool {
	return t.AccessTokenExp <= now.UnixMilli()
}

// Scopes returns the granted scopes.
func (t *StoredToken) Scopes() []string {
	return strings.Fields(t.Scope)
}

// HasScopes reports whether every scope in want has been granted.
func (t *StoredToken) HasScopes(want []string) bool {
	granted := make(map[string]bool)
	for _, s := range t.Scopes() {
		granted[s] = true
	}
	for _, s := range want {
		if !granted[s] {
			return false
		}
	}
	return true
}

// IsEnterprise reports whether the account belongs to a Workspace domain.
func (t *StoredToken) IsEnterprise() bool {
	return t.GSuite != ""
}

// Patch carries the fields to merge into a StoredToken. Nil fields are left
// unchanged.
type Patch struct {
	AccessToken        *string
	AccessTokenExp     *int64
	Scope              *string
	RefreshToken       *string
	GSuite             *string
	GmailAccountID     *string
	LegacyGSuite       *bool
	MveloLicenseIssued *int64
}

// Apply merges p into t.
func (p Patch) Apply(t *StoredToken) {
	if p.AccessToken != nil {
		t.AccessToken = *p.AccessToken
	}
	if p.AccessTokenExp != nil {
		t.AccessTokenExp = *p.AccessTokenExp
	}
	if p.Scope != nil {
		t.Scope = *p.Scope
	}
	if p.RefreshToken != nil {
		t.RefreshToken = *p.RefreshToken
	}
	if p.GSuite != nil {
		t.GSuite = *p.GSuite
	}
	if p.GmailAccountID != nil {
		t.GmailAccountID = *p.GmailAccountID
	}
	if p.LegacyGSuite != nil {
		t.LegacyGSuite = *p.LegacyGSuite
	}
	if p.MveloLicenseIssued != nil {
		t.MveloLicenseIssued = *p.MveloLicenseIssued
	}
}

// String returns a pointer to v, for building a Patch.
func String(v string) *string { return &v }

// Int64 returns a pointer to v, for building a Patch.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v, for building a Patch.
func Bool(v bool) *bool { return &v }
