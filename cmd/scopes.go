package cmd

import (
	"strings"

	"github.com/teemow/mvgmail/internal/google"
)

const scopePrefix = "https://www.googleapis.com/auth/"

// parseCommaSeparatedList splits s on commas, trimming blanks and dropping
// empty entries.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// resolveScopes expands short scope names like "gmail.send" to full scope
// URLs. An empty list selects google.DefaultScopes.
func resolveScopes(list string) []string {
	scopes := parseCommaSeparatedList(list)
	if len(scopes) == 0 {
		return google.DefaultScopes
	}
	for i, s := range scopes {
		if !strings.Contains(s, "/") && s != "openid" && s != "email" && s != "profile" {
			scopes[i] = scopePrefix + s
		}
	}
	return scopes
}
