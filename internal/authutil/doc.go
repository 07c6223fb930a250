// Package authutil holds the small parsing helpers used by the OAuth flow:
// query strings taken from window titles or redirect URLs, unverified
// identity-token payloads and random state tokens.
package authutil
