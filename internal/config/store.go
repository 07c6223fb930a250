package config

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/teemow/mvgmail/internal/storage"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStorage opens the configured backend. The returned Closer releases the
// backend and must be called once the storage is no longer used.
func (c *Config) OpenStorage() (storage.Storage, io.Closer, error) {
	key, err := storage.KeyFromBase64(c.Store.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	cipher, err := storage.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	dir := c.Store.Path
	if dir == "" {
		dir = storage.DefaultDir()
	}

	switch c.Store.Backend {
	case BackendMemory:
		return storage.New(storage.NewMemory(), cipher), nopCloser{}, nil

	case BackendKeyring:
		ring, err := storage.OpenKeyring(storage.KeyringConfig{FileDir: filepath.Join(dir, "keyring")})
		if err != nil {
			return nil, nil, err
		}
		return storage.New(ring, cipher), nopCloser{}, nil

	case BackendSQLite:
		path := c.Store.Path
		if path == "" {
			path = filepath.Join(storage.DefaultDir(), "tokens.db")
		}
		db, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return storage.New(db, cipher), db, nil

	case BackendFile, "":
		return storage.New(storage.NewFile(dir), cipher), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
}
