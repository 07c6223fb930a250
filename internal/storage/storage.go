package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Storage reads and writes JSON-serialisable values by key.
type Storage interface {
	// Get decodes the value stored under key into dst. found is false when
	// nothing is stored under key; dst is left untouched in that case.
	Get(ctx context.Context, key string, dst any) (found bool, err error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value any) error
}

// Backend persists opaque values. A single Save must replace the previous
// value atomically.
type Backend interface {
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// Codec adapts a Backend to Storage, JSON encoding values and sealing them
// with the configured Cipher.
type Codec struct {
	backend Backend
	cipher  *Cipher
}

// New returns a Storage on top of backend. A nil cipher stores plaintext JSON.
func New(backend Backend, cipher *Cipher) *Codec {
	if cipher == nil {
		cipher = &Cipher{}
	}
	return &Codec{backend: backend, cipher: cipher}
}

// Get implements Storage.
func (c *Codec) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, found, err := c.backend.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to load %q: %w", key, err)
	}
	if !found {
		return false, nil
	}

	plain, err := c.cipher.Open(data)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt %q: %w", key, err)
	}
	if err := json.Unmarshal(plain, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Set implements Storage.
func (c *Codec) Set(ctx context.Context, key string, value any) error {
	plain, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	data, err := c.cipher.Seal(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt %q: %w", key, err)
	}
	if err := c.backend.Save(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}
