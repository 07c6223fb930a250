package google

import "fmt"

// AuthorizationError means the interactive consent flow produced no usable
// authorization code.
type AuthorizationError struct {
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %s: %v", e.Reason, e.Err)
	}
	return "authorization failed: " + e.Reason
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// IDValidationError means a claim of the returned identity token did not
// match what was expected.
type IDValidationError struct {
	Claim string
	Got   string
	Want  string
}

func (e *IDValidationError) Error() string {
	if e.Got == "" && e.Want == "" {
		return fmt.Sprintf("id token validation failed: %s", e.Claim)
	}
	return fmt.Sprintf("id token validation failed: %s is %q, want %q", e.Claim, e.Got, e.Want)
}

// LicensingError means the Workspace license check failed and no legacy
// exemption applies.
type LicensingError struct {
	Domain string
	Reason string
	Err    error
}

func (e *LicensingError) Error() string {
	return fmt.Sprintf("workspace license check failed for %s: %s", e.Domain, e.Reason)
}

func (e *LicensingError) Unwrap() error { return e.Err }
