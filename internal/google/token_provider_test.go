package google

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mvgmail/internal/tokenstore"
)

const user = "jane@example.com"

var grantedScope = strings.Join(WithBaseScopes([]string{ScopeGmailReadonly}), " ")

func seed(t *testing.T, store *tokenstore.Store, exp time.Time, refresh string) {
	t.Helper()
	p := tokenstore.Patch{
		AccessToken:    tokenstore.String("stored-access"),
		AccessTokenExp: tokenstore.Int64(exp.UnixMilli()),
		Scope:          tokenstore.String(grantedScope),
	}
	if refresh != "" {
		p.RefreshToken = tokenstore.String(refresh)
	}
	require.NoError(t, store.Set(context.Background(), user, p))
}

func TestGetAccessToken_ValidTokenNoNetwork(t *testing.T) {
	f := newFakeGoogle(t)
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(time.Minute), "refresh")

	p := NewTokenProvider(f.config(), store, f.options(&now))
	tok, err := p.GetAccessToken(context.Background(), user, []string{ScopeGmailReadonly})
	require.NoError(t, err)
	assert.Equal(t, "stored-access", tok)
	assert.Empty(t, f.tokenCalls())
}

func TestGetAccessToken_NoValue(t *testing.T) {
	tests := []struct {
		name    string
		seed    func(t *testing.T, store *tokenstore.Store)
		account string
		scopes  []string
	}{
		{
			name:    "no record",
			seed:    func(*testing.T, *tokenstore.Store) {},
			account: user,
			scopes:  []string{ScopeGmailReadonly},
		},
		{
			name: "scope not granted",
			seed: func(t *testing.T, s *tokenstore.Store) {
				seed(t, s, testNow.Add(time.Hour), "refresh")
			},
			account: user,
			scopes:  []string{ScopeGmailSend},
		},
		{
			name: "expired without refresh token",
			seed: func(t *testing.T, s *tokenstore.Store) {
				seed(t, s, testNow.Add(-time.Minute), "")
			},
			account: user,
			scopes:  []string{ScopeGmailReadonly},
		},
		{
			name: "expires exactly now",
			seed: func(t *testing.T, s *tokenstore.Store) {
				seed(t, s, testNow, "")
			},
			account: user,
			scopes:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGoogle(t)
			store := newTestStore()
			tt.seed(t, store)
			now := testNow

			tok, err := NewTokenProvider(f.config(), store, f.options(&now)).GetAccessToken(context.Background(), tt.account, tt.scopes)
			require.NoError(t, err)
			assert.Empty(t, tok)
			assert.Empty(t, f.tokenCalls())
		})
	}
}

func TestGetAccessToken_Refresh(t *testing.T) {
	f := newFakeGoogle(t)
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(-time.Minute), "refresh-1")

	p := NewTokenProvider(f.config(), store, f.options(&now))
	tok, err := p.GetAccessToken(context.Background(), user, []string{ScopeGmailReadonly})
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)

	calls := f.tokenCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "refresh_token", calls[0].Get("grant_type"))
	assert.Equal(t, "refresh-1", calls[0].Get("refresh_token"))
	assert.Equal(t, ClientID, calls[0].Get("client_id"))

	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "new-access", rec.AccessToken)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), rec.AccessTokenExp)
	assert.Equal(t, "refresh-1", rec.RefreshToken)
	assert.Equal(t, grantedScope, rec.Scope)

	// the refreshed token is now served from the store
	tok, err = p.GetAccessToken(context.Background(), user, []string{ScopeGmailReadonly})
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.Len(t, f.tokenCalls(), 1)
}

func TestGetAccessToken_RefreshRotatesRefreshToken(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, map[string]any{
		"access_token":  "new-access",
		"refresh_token": "refresh-2",
		"expires_in":    60,
	})
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(-time.Minute), "refresh-1")

	_, err := NewTokenProvider(f.config(), store, f.options(&now)).GetAccessToken(context.Background(), user, nil)
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", rec.RefreshToken)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), rec.AccessTokenExp)
}

func TestGetAccessToken_RefreshRejected(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusBadRequest, nil)
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(-time.Minute), "revoked")

	tok, err := NewTokenProvider(f.config(), store, f.options(&now)).GetAccessToken(context.Background(), user, nil)
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.Len(t, f.tokenCalls(), 1)

	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "stored-access", rec.AccessToken)
}

func TestGetAccessToken_TransportError(t *testing.T) {
	f := newFakeGoogle(t)
	cfg := f.config()
	cfg.TokenURL = "http://127.0.0.1:1/token"
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(-time.Minute), "refresh")

	_, err := NewTokenProvider(cfg, store, f.options(&now)).GetAccessToken(context.Background(), user, nil)
	assert.Error(t, err)
}

func TestTokenSource(t *testing.T) {
	f := newFakeGoogle(t)
	store := newTestStore()
	now := testNow
	p := NewTokenProvider(f.config(), store, f.options(&now))
	ctx := context.Background()

	assert.False(t, p.HasTokenForAccount(ctx, user))
	_, err := p.TokenSource(ctx, user, nil).Token()
	assert.ErrorIs(t, err, ErrNoToken)

	seed(t, store, now.Add(time.Hour), "")
	assert.True(t, p.HasTokenForAccount(ctx, "JANE@example.com"))

	tok, err := p.TokenSource(ctx, user, []string{ScopeGmailReadonly}).Token()
	require.NoError(t, err)
	assert.Equal(t, "stored-access", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
}

func TestWithBaseScopes(t *testing.T) {
	got := WithBaseScopes([]string{ScopeGmailSend, "openid", "", ScopeGmailSend})
	assert.Equal(t, []string{"openid", "https://www.googleapis.com/auth/userinfo.email", ScopeGmailSend}, got)
}
