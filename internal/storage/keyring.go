package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const keyringService = "mvgmail"

// KeyringConfig selects how the OS keyring is opened.
type KeyringConfig struct {
	// FileDir is used by the encrypted file fallback backend.
	FileDir string

	// FilePassword unlocks the file fallback backend.
	FilePassword string
}

// Keyring stores values in the operating system keyring.
type Keyring struct {
	ring keyring.Keyring
}

// OpenKeyring opens the platform keyring, falling back to an encrypted file
// when no native backend is available.
func OpenKeyring(cfg KeyringConfig) (*Keyring, error) {
	if cfg.FileDir == "" {
		cfg.FileDir = DefaultDir() + "/keyring"
	}
	password := cfg.FilePassword
	if password == "" {
		password = keyringService + "-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyring(ring), nil
}

// NewKeyring wraps an already opened keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// Load implements Backend.
func (k *Keyring) Load(_ context.Context, key string) ([]byte, bool, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting credential %q: %w", key, err)
	}
	return item.Data, true, nil
}

// Save implements Backend.
func (k *Keyring) Save(_ context.Context, key string, data []byte) error {
	err := k.ring.Set(keyring.Item{
		Key:         key,
		Data:        data,
		Label:       "mvgmail OAuth tokens",
		Description: "OAuth token records for Gmail accounts",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}
