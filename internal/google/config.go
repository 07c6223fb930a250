package google

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ClientID is the OAuth client compiled into mvgmail.
const ClientID = "1045263720983-mvgmail0q4hb6f2k7dv1b3jj9e2hfo0c.apps.googleusercontent.com"

// Default endpoints.
const (
	DefaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
	DefaultApprovalURL = "https://accounts.google.com/o/oauth2/approval"
	DefaultRedirectURL = "urn:ietf:wg:oauth:2.0:oob:auto"
	DefaultAPIBaseURL  = "https://gmail.googleapis.com/"
	DefaultLicenseURL  = "https://license.mailvelope.com/api/v1/gsuite/license"

	DefaultPopupTimeout = 5 * time.Minute
	DefaultHTTPTimeout  = 30 * time.Second
)

// Config carries the client identity and every upstream endpoint. It is
// passed by value; a Config is never modified after construction.
type Config struct {
	ClientID     string
	ClientSecret string

	AuthURL   string
	TokenURL  string
	RevokeURL string

	// ApprovalURL is the page whose window title carries the authorization
	// response when RedirectURL is the out-of-band URN.
	ApprovalURL string
	RedirectURL string

	APIBaseURL string
	LicenseURL string

	// Issuers are the accepted "iss" values of the identity token.
	Issuers []string

	// PopupTimeout bounds the wait for the user's consent.
	PopupTimeout time.Duration
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		ClientID:     ClientID,
		AuthURL:      google.Endpoint.AuthURL,
		TokenURL:     google.Endpoint.TokenURL,
		RevokeURL:    DefaultRevokeURL,
		ApprovalURL:  DefaultApprovalURL,
		RedirectURL:  DefaultRedirectURL,
		APIBaseURL:   DefaultAPIBaseURL,
		LicenseURL:   DefaultLicenseURL,
		Issuers:      []string{"accounts.google.com", "https://accounts.google.com"},
		PopupTimeout: DefaultPopupTimeout,
	}
}

func (c Config) oauth2Config(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

func (c Config) popupTimeout() time.Duration {
	if c.PopupTimeout <= 0 {
		return DefaultPopupTimeout
	}
	return c.PopupTimeout
}

// NewHTTPClient returns the client used for OAuth, license and API calls.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}
