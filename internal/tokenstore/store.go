package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/teemow/mvgmail/internal/logging"
	"github.com/teemow/mvgmail/internal/storage"
)

// StoreKey is the storage key holding the account → token mapping.
const StoreKey = "mvelo.oauth.gmail"

// Store manages StoredToken records on top of a storage.Storage.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	logger  *slog.Logger
}

// New returns a Store persisting to s.
func New(s storage.Storage, logger *slog.Logger) *Store {
	return &Store{
		storage: s,
		logger:  logging.WithComponent(logging.OrDefault(logger), "tokenstore"),
	}
}

func normalize(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

func (s *Store) load(ctx context.Context) (map[string]*StoredToken, error) {
	tokens := make(map[string]*StoredToken)
	if _, err := s.storage.Get(ctx, StoreKey, &tokens); err != nil {
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}
	if tokens == nil {
		tokens = make(map[string]*StoredToken)
	}
	return tokens, nil
}

func (s *Store) save(ctx context.Context, tokens map[string]*StoredToken) error {
	if err := s.storage.Set(ctx, StoreKey, tokens); err != nil {
		return fmt.Errorf("failed to write token store: %w", err)
	}
	return nil
}

// Get returns the record of account, or nil when none is stored.
func (s *Store) Get(ctx context.Context, account string) (*StoredToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return tokens[normalize(account)], nil
}

// Set merges p into the record of account, creating it if absent, and
// persists the mapping.
func (s *Store) Set(ctx context.Context, account string, p Patch) error {
	if normalize(account) == "" {
		return fmt.Errorf("account cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx)
	if err != nil {
		return err
	}

	key := normalize(account)
	rec, ok := tokens[key]
	if !ok {
		rec = &StoredToken{}
		tokens[key] = rec
	}
	p.Apply(rec)

	if err := s.save(ctx, tokens); err != nil {
		return err
	}
	s.logger.Debug("token record updated", logging.UserHash(key), slog.Bool("created", !ok))
	return nil
}

// Remove deletes the record of account. Removing an absent record is not an
// error.
func (s *Store) Remove(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx)
	if err != nil {
		return err
	}

	key := normalize(account)
	if _, ok := tokens[key]; !ok {
		return nil
	}
	delete(tokens, key)

	if err := s.save(ctx, tokens); err != nil {
		return err
	}
	s.logger.Info("token record removed", logging.UserHash(key))
	return nil
}

// Accounts returns the sorted list of accounts with a stored record.
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]string, 0, len(tokens))
	for account := range tokens {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}
