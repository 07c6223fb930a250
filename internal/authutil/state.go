package authutil

import "github.com/google/uuid"

// NewState returns a fresh random value for the OAuth state parameter.
func NewState() string {
	return uuid.NewString()
}
