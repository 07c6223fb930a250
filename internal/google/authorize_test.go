package google

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mvgmail/internal/popup"
	"github.com/teemow/mvgmail/internal/popup/popuptest"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

// approve returns a script that answers on the approval page with the state
// found in the authorization URL.
func approve(t *testing.T, approvalURL, code string) func(string) []popup.Navigation {
	return func(authURL string) []popup.Navigation {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		state := u.Query().Get("state")
		return []popup.Navigation{
			{URL: "https://accounts.google.com/signin", Title: "Sign in"},
			{URL: approvalURL + "?as=x", Title: ""},
			{URL: approvalURL + "?as=x", Title: "Success state=" + state + "&code=" + code},
		}
	}
}

// deny returns a script that answers with error=reason, echoing the state
// of the authorization URL unless state is given.
func deny(reason, state string) func(string) []popup.Navigation {
	return func(authURL string) []popup.Navigation {
		echoed := state
		if echoed == "" {
			u, _ := url.Parse(authURL)
			echoed = u.Query().Get("state")
		}
		return []popup.Navigation{
			{URL: DefaultApprovalURL, Title: "Denied error=" + reason + "&state=" + echoed},
		}
	}
}

func tokenResponse(idToken string) map[string]any {
	return map[string]any{
		"access_token":  "fresh-access",
		"refresh_token": "fresh-refresh",
		"token_type":    "Bearer",
		"expires_in":    3599,
		"scope":         grantedScope,
		"id_token":      idToken,
	}
}

func TestAuthorize_Success(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, tokenResponse(idToken(t, validClaims(user))))
	cfg := f.config()
	store := newTestStore()
	now := testNow
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "auth-code")}

	a := NewAuthorizer(cfg, store, opener, nil, f.options(&now))
	tok, err := a.Authorize(context.Background(), user, false, []string{ScopeGmailReadonly})
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok)
	assert.True(t, opener.AllClosed())

	opened := opener.Opened()
	require.Len(t, opened, 1)
	u, err := url.Parse(opened[0])
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, ClientID, q.Get("client_id"))
	assert.Equal(t, user, q.Get("login_hint"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, DefaultRedirectURL, q.Get("redirect_uri"))
	assert.Equal(t, grantedScope, q.Get("scope"))
	assert.NotEmpty(t, q.Get("state"))
	assert.Equal(t, []popup.Options{{Width: 500, Height: 650}}, opener.OpenOptions())

	calls := f.tokenCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "authorization_code", calls[0].Get("grant_type"))
	assert.Equal(t, "auth-code", calls[0].Get("code"))
	assert.Equal(t, DefaultRedirectURL, calls[0].Get("redirect_uri"))

	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, &tokenstore.StoredToken{
		AccessToken:    "fresh-access",
		AccessTokenExp: now.Add(3599 * time.Second).UnixMilli(),
		Scope:          grantedScope,
		RefreshToken:   "fresh-refresh",
	}, rec)
	assert.Empty(t, f.licenseCalls())
}

func TestAuthorize_NoConsentPromptWithRefreshToken(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, map[string]any{
		"access_token": "fresh-access",
		"expires_in":   3600,
		"id_token":     idToken(t, validClaims(user)),
	})
	cfg := f.config()
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(-time.Hour), "kept-refresh")
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}

	_, err := NewAuthorizer(cfg, store, opener, nil, f.options(&now)).Authorize(context.Background(), user, false, nil)
	require.NoError(t, err)

	u, err := url.Parse(opener.Opened()[0])
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("prompt"))

	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "kept-refresh", rec.RefreshToken)
	assert.Equal(t, strings.Join(BaseScopes, " "), rec.Scope)
}

func TestAuthorize_LoopbackRedirect(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, tokenResponse(idToken(t, validClaims(user))))
	cfg := f.config()
	now := testNow
	const redirect = "http://127.0.0.1:8085/oauth2/callback"

	scripted := &popuptest.Scripted{Redirect: redirect}
	scripted.Script = func(authURL string) []popup.Navigation {
		u, _ := url.Parse(authURL)
		return []popup.Navigation{
			{URL: "http://127.0.0.1:8085/favicon.ico"},
			{URL: redirect + "?state=" + u.Query().Get("state") + "&code=loop-code&scope=openid"},
		}
	}

	tok, err := NewAuthorizer(cfg, newTestStore(), scripted.WithRedirect(), nil, f.options(&now)).
		Authorize(context.Background(), user, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok)

	calls := f.tokenCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "loop-code", calls[0].Get("code"))
	assert.Equal(t, redirect, calls[0].Get("redirect_uri"))
}

func TestAuthorize_PopupFailures(t *testing.T) {
	tests := []struct {
		name       string
		opener     func(approvalURL string) *popuptest.Scripted
		timeout    time.Duration
		wantCtx    error
		wantReason string
	}{
		{
			name: "state mismatch",
			opener: func(approvalURL string) *popuptest.Scripted {
				return &popuptest.Scripted{Navigations: []popup.Navigation{
					{URL: approvalURL, Title: "Success state=forged&code=c"},
				}}
			},
			wantReason: "state mismatch",
		},
		{
			name: "access denied",
			opener: func(string) *popuptest.Scripted {
				return &popuptest.Scripted{Script: deny("access_denied", "")}
			},
			wantReason: "access_denied",
		},
		{
			name: "error with forged state",
			opener: func(string) *popuptest.Scripted {
				return &popuptest.Scripted{Script: deny("you_have_been_hacked", "forged")}
			},
			wantReason: "state mismatch",
		},
		{
			name: "error without state",
			opener: func(approvalURL string) *popuptest.Scripted {
				return &popuptest.Scripted{Navigations: []popup.Navigation{
					{URL: approvalURL, Title: "Denied error=access_denied"},
				}}
			},
			wantReason: "state mismatch",
		},
		{
			name: "closed by user",
			opener: func(string) *popuptest.Scripted {
				return &popuptest.Scripted{Navigations: []popup.Navigation{
					{URL: "https://accounts.google.com/signin", Title: "Sign in"},
				}}
			},
		},
		{
			name: "never completes",
			opener: func(string) *popuptest.Scripted {
				return &popuptest.Scripted{KeepOpen: true}
			},
			timeout: 50 * time.Millisecond,
			wantCtx: context.DeadlineExceeded,
		},
		{
			name: "open fails",
			opener: func(string) *popuptest.Scripted {
				return &popuptest.Scripted{Err: errors.New("popup blocked")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGoogle(t)
			cfg := f.config()
			if tt.timeout > 0 {
				cfg.PopupTimeout = tt.timeout
			}
			store := newTestStore()
			now := testNow
			opener := tt.opener(cfg.ApprovalURL)

			_, err := NewAuthorizer(cfg, store, opener, nil, f.options(&now)).Authorize(context.Background(), user, false, nil)

			var authErr *AuthorizationError
			require.ErrorAs(t, err, &authErr)
			if tt.wantCtx != nil {
				assert.ErrorIs(t, err, tt.wantCtx)
			}
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, authErr.Reason)
			}
			if opener.Err == nil {
				assert.True(t, opener.AllClosed())
			}
			assert.Empty(t, f.tokenCalls())

			rec, err := store.Get(context.Background(), user)
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestAuthorize_Cancelled(t *testing.T) {
	f := newFakeGoogle(t)
	now := testNow
	opener := &popuptest.Scripted{KeepOpen: true}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewAuthorizer(f.config(), newTestStore(), opener, nil, f.options(&now)).Authorize(ctx, user, false, nil)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, opener.AllClosed())
}

func TestAuthorize_IDTokenValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c map[string]any)
		claim  string
	}{
		{name: "foreign audience", mutate: func(c map[string]any) { c["aud"] = "someone-else.apps.googleusercontent.com" }, claim: "aud"},
		{name: "foreign issuer", mutate: func(c map[string]any) { c["iss"] = "https://evil.example" }, claim: "iss"},
		{name: "other email", mutate: func(c map[string]any) { c["email"] = "mallory@example.com" }, claim: "email"},
		{name: "expired", mutate: func(c map[string]any) { c["exp"] = testNow.Add(-time.Second).Unix() }, claim: "exp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims(user)
			tt.mutate(claims)

			f := newFakeGoogle(t)
			f.setToken(http.StatusOK, tokenResponse(idToken(t, claims)))
			cfg := f.config()
			store := newTestStore()
			now := testNow
			opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}

			_, err := NewAuthorizer(cfg, store, opener, nil, f.options(&now)).Authorize(context.Background(), user, false, nil)

			var idErr *IDValidationError
			require.ErrorAs(t, err, &idErr)
			assert.Equal(t, tt.claim, idErr.Claim)

			rec, err := store.Get(context.Background(), user)
			require.NoError(t, err)
			assert.Nil(t, rec, "nothing may be persisted")
		})
	}
}

func TestAuthorize_EmailCaseInsensitive(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, tokenResponse(idToken(t, validClaims("Jane@Example.com"))))
	cfg := f.config()
	now := testNow
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}

	_, err := NewAuthorizer(cfg, newTestStore(), opener, nil, f.options(&now)).Authorize(context.Background(), user, false, nil)
	assert.NoError(t, err)
}

func TestAuthorize_MissingIDToken(t *testing.T) {
	f := newFakeGoogle(t)
	cfg := f.config()
	now := testNow
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}

	_, err := NewAuthorizer(cfg, newTestStore(), opener, nil, f.options(&now)).Authorize(context.Background(), user, false, nil)
	var idErr *IDValidationError
	assert.ErrorAs(t, err, &idErr)
}

func TestAuthorize_ExchangeFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.setToken(http.StatusBadRequest, nil)
	cfg := f.config()
	now := testNow
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}

	_, err := NewAuthorizer(cfg, newTestStore(), opener, nil, f.options(&now)).Authorize(context.Background(), user, false, nil)
	require.Error(t, err)

	var authErr *AuthorizationError
	assert.False(t, errors.As(err, &authErr))
}

func TestAuthorize_WorkspaceAccountRunsLicenseCheck(t *testing.T) {
	claims := validClaims(workspaceUser)
	claims["hd"] = "corp.example"

	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, tokenResponse(idToken(t, claims)))
	cfg := f.config()
	store := newTestStore()
	now := testNow
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}
	opts := f.options(&now)

	a := NewAuthorizer(cfg, store, opener, NewLicenseChecker(cfg, store, opts), opts)
	_, err := a.Authorize(context.Background(), workspaceUser, false, nil)
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), workspaceUser)
	require.NoError(t, err)
	assert.Equal(t, "corp.example", rec.GSuite)
	assert.Equal(t, "108000000000000000001", rec.GmailAccountID)
	assert.Equal(t, MonthStart(now).UnixMilli(), rec.MveloLicenseIssued)

	calls := f.licenseCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, HashAccountID("108000000000000000001"), calls[0].User)
}

func TestAuthorize_WorkspaceLicenseDenied(t *testing.T) {
	claims := validClaims(workspaceUser)
	claims["hd"] = "corp.example"

	f := newFakeGoogle(t)
	f.setToken(http.StatusOK, tokenResponse(idToken(t, claims)))
	f.setLicense(http.StatusPaymentRequired, `{"message":"subscription expired"}`)
	cfg := f.config()
	store := newTestStore()
	now := testNow
	opener := &popuptest.Scripted{Script: approve(t, cfg.ApprovalURL, "c")}
	opts := f.options(&now)

	_, err := NewAuthorizer(cfg, store, opener, NewLicenseChecker(cfg, store, opts), opts).
		Authorize(context.Background(), workspaceUser, false, nil)

	var le *LicensingError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "subscription expired", le.Reason)
}

func TestDeauthorize(t *testing.T) {
	f := newFakeGoogle(t)
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(time.Hour), "the-refresh")
	a := NewAuthorizer(f.config(), store, &popuptest.Scripted{}, nil, f.options(&now))

	require.NoError(t, a.Deauthorize(context.Background(), user))

	calls := f.revokeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "the-refresh", calls[0].Get("token"))

	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// nothing stored: no revoke call
	require.NoError(t, a.Deauthorize(context.Background(), user))
	assert.Len(t, f.revokeCalls(), 1)
}

func TestDeauthorize_RevokeFailureStillRemoves(t *testing.T) {
	f := newFakeGoogle(t)
	f.mu.Lock()
	f.revokeStatus = http.StatusBadRequest
	f.mu.Unlock()
	store := newTestStore()
	now := testNow
	seed(t, store, now.Add(time.Hour), "")

	err := NewAuthorizer(f.config(), store, &popuptest.Scripted{}, nil, f.options(&now)).Deauthorize(context.Background(), user)
	require.Error(t, err)

	assert.Equal(t, "stored-access", f.revokeCalls()[0].Get("token"))
	rec, err := store.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
