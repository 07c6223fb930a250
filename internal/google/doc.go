// Package google implements the Google side of mvgmail's account handling:
// the interactive OAuth authorization, access-token lookup and refresh, and
// the monthly Workspace license check.
//
// All three operate on the per-account records of a tokenstore.Store and take
// their endpoints from an immutable Config, so tests can point them at local
// servers.
//
// Absence of a usable token is never an error: TokenProvider.GetAccessToken
// returns "" and a nil error, and the caller decides whether to start an
// interactive Authorize.
package google
