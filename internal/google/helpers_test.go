package google

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teemow/mvgmail/internal/storage"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

// fakeGoogle serves the token, revoke and license endpoints.
type fakeGoogle struct {
	srv *httptest.Server

	mu            sync.Mutex
	tokenForms    []url.Values
	revokeForms   []url.Values
	licenseBodies []licenseRequest

	tokenStatus   int
	tokenResponse map[string]any

	revokeStatus int

	licenseStatus int
	licenseBody   string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		tokenStatus: http.StatusOK,
		tokenResponse: map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		},
		revokeStatus:  http.StatusOK,
		licenseStatus: http.StatusOK,
		licenseBody:   `{}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.tokenForms = append(f.tokenForms, r.PostForm)
		status, resp := f.tokenStatus, f.tokenResponse
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.revokeForms = append(f.revokeForms, r.PostForm)
		status := f.revokeStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})
	mux.HandleFunc("/license", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body licenseRequest
		require.NoError(t, json.Unmarshal(data, &body))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		f.mu.Lock()
		f.licenseBodies = append(f.licenseBodies, body)
		status, resp := f.licenseStatus, f.licenseBody
		f.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) config() Config {
	cfg := DefaultConfig()
	cfg.AuthURL = "https://accounts.example/o/oauth2/auth"
	cfg.TokenURL = f.srv.URL + "/token"
	cfg.RevokeURL = f.srv.URL + "/revoke"
	cfg.LicenseURL = f.srv.URL + "/license"
	cfg.PopupTimeout = 2 * time.Second
	return cfg
}

func (f *fakeGoogle) setToken(status int, resp map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus, f.tokenResponse = status, resp
}

func (f *fakeGoogle) setLicense(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.licenseStatus, f.licenseBody = status, body
}

func (f *fakeGoogle) tokenCalls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenForms...)
}

func (f *fakeGoogle) revokeCalls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.revokeForms...)
}

func (f *fakeGoogle) licenseCalls() []licenseRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]licenseRequest(nil), f.licenseBodies...)
}

func (f *fakeGoogle) options(now *time.Time) Options {
	return Options{
		HTTPClient: f.srv.Client(),
		Now:        func() time.Time { return *now },
	}
}

func newTestStore() *tokenstore.Store {
	return tokenstore.New(storage.New(storage.NewMemory(), nil), nil)
}

func idToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	require.NoError(t, err)
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(body) + ".c2lnbmF0dXJl"
}

func validClaims(email string) map[string]any {
	return map[string]any{
		"iss":   "https://accounts.google.com",
		"aud":   ClientID,
		"sub":   "108000000000000000001",
		"email": email,
		"exp":   testNow.Add(time.Hour).Unix(),
	}
}
