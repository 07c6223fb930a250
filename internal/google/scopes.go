package google

import gmail "google.golang.org/api/gmail/v1"

// BaseScopes are requested with every authorization and required of every
// stored token.
var BaseScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Gmail scopes used by mvgmail.
const (
	ScopeGmailReadonly = gmail.GmailReadonlyScope
	ScopeGmailSend     = gmail.GmailSendScope
)

// DefaultScopes are the scopes the CLI asks for when none are given.
var DefaultScopes = []string{ScopeGmailReadonly, ScopeGmailSend}

// WithBaseScopes returns BaseScopes followed by the scopes not already present.
func WithBaseScopes(scopes []string) []string {
	out := make([]string, 0, len(BaseScopes)+len(scopes))
	seen := make(map[string]bool, len(BaseScopes)+len(scopes))
	for _, list := range [][]string{BaseScopes, scopes} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
