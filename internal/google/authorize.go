package google

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mvgmail/internal/authutil"
	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
	"github.com/teemow/mvgmail/internal/popup"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

// Authorizer runs the interactive OAuth consent flow and revokes grants.
type Authorizer struct {
	cfg     Config
	store   *tokenstore.Store
	opener  popup.Opener
	license *LicenseChecker
	opts    Options
}

// NewAuthorizer returns an Authorizer. license may be nil to skip the
// Workspace license check.
func NewAuthorizer(cfg Config, store *tokenstore.Store, opener popup.Opener, license *LicenseChecker, opts Options) *Authorizer {
	return &Authorizer{
		cfg:     cfg,
		store:   store,
		opener:  opener,
		license: license,
		opts:    opts.withDefaults("authorizer"),
	}
}

// Authorize asks the user for consent to scopes (plus BaseScopes), exchanges
// the authorization code, validates the identity token, stores the result and
// returns the new access token.
func (a *Authorizer) Authorize(ctx context.Context, email string, legacyGsuite bool, scopes []string) (_ string, err error) {
	logger := logging.WithOperation(a.opts.Logger, "authorize").With(logging.UserHash(email))
	ctx, span := instrumentation.StartOAuthSpan(ctx, "authorize", instrumentation.UserHash(email))
	defer func() {
		instrumentation.EndSpan(span, err)
		result := instrumentation.OAuthResultSuccess
		if err != nil {
			result = instrumentation.OAuthResultFailure
		}
		a.opts.Metrics.RecordOAuthAuth(ctx, result)
	}()

	scopes = WithBaseScopes(scopes)
	state := authutil.NewState()

	redirectURL := a.cfg.RedirectURL
	if r, ok := a.opener.(popup.RedirectOpener); ok {
		if redirectURL, err = r.RedirectURL(); err != nil {
			return "", &AuthorizationError{Reason: "redirect listener unavailable", Err: err}
		}
	}
	conf := a.cfg.oauth2Config(redirectURL, scopes)

	stored, err := a.store.Get(ctx, email)
	if err != nil {
		return "", err
	}
	params := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("login_hint", email),
	}
	if stored == nil || stored.RefreshToken == "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", "consent"))
	}

	logger.Info("waiting for user consent", logging.Scope(scopes))
	code, err := a.awaitCode(ctx, conf.AuthCodeURL(state, params...), state, redirectURL)
	if err != nil {
		return "", err
	}

	now := a.opts.Now()
	tok, err := conf.Exchange(a.opts.oauthContext(ctx), code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	claims, err := a.validateIDToken(extraString(tok, "id_token"), email, now)
	if err != nil {
		logger.Warn("identity token rejected", logging.Err(err))
		return "", err
	}

	granted := extraString(tok, "scope")
	if granted == "" {
		granted = strings.Join(scopes, " ")
	}
	patch := tokenstore.Patch{
		AccessToken:    tokenstore.String(tok.AccessToken),
		AccessTokenExp: tokenstore.Int64(expiryMillis(now, tok)),
		Scope:          tokenstore.String(granted),
	}
	if tok.RefreshToken != "" {
		patch.RefreshToken = tokenstore.String(tok.RefreshToken)
	}
	if hd := claims.HostedDomain(); hd != "" {
		patch.GSuite = tokenstore.String(hd)
		patch.GmailAccountID = tokenstore.String(claims.Subject())
	}
	if err := a.store.Set(ctx, email, patch); err != nil {
		return "", err
	}

	if patch.GSuite != nil && a.license != nil {
		if err := a.license.Check(ctx, email, legacyGsuite); err != nil {
			return "", err
		}
	}

	logger.Info("account authorized", logging.Domain(email))
	logger.Debug("token stored", logging.Token(tok.AccessToken), "refresh", tok.RefreshToken != "")
	return tok.AccessToken, nil
}

// awaitCode opens the consent popup and waits for the authorization response.
// The window is closed on every path.
func (a *Authorizer) awaitCode(ctx context.Context, authURL, state, redirectURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.popupTimeout())
	defer cancel()

	win, err := a.opener.Open(ctx, authURL, popup.Options{Width: popup.DefaultWidth, Height: popup.DefaultHeight})
	if err != nil {
		return "", &AuthorizationError{Reason: "failed to open popup", Err: err}
	}
	defer func() { _ = win.Close() }()

	navs := win.Navigations()
	for {
		select {
		case <-ctx.Done():
			return "", &AuthorizationError{Reason: "no response from popup", Err: ctx.Err()}

		case nav, ok := <-navs:
			if !ok {
				return "", &AuthorizationError{Reason: "popup closed before authorization completed"}
			}
			resp := a.responseParams(nav, redirectURL)
			if resp == nil {
				continue
			}
			if resp["state"] != state {
				return "", &AuthorizationError{Reason: "state mismatch"}
			}
			if e := resp["error"]; e != "" {
				return "", &AuthorizationError{Reason: e}
			}
			if resp["code"] == "" {
				return "", &AuthorizationError{Reason: "no authorization code in response"}
			}
			return resp["code"], nil
		}
	}
}

// responseParams returns the authorization response carried by nav, or nil
// when nav is not a response page. The approval page carries it in the title
// ("Success state=...&code=..."), a loopback redirect in the URL query.
func (a *Authorizer) responseParams(nav popup.Navigation, redirectURL string) map[string]string {
	var raw string
	switch {
	case a.cfg.ApprovalURL != "" && strings.HasPrefix(nav.URL, a.cfg.ApprovalURL):
		_, raw, _ = strings.Cut(nav.Title, " ")
	case strings.HasPrefix(redirectURL, "http") && strings.HasPrefix(nav.URL, redirectURL):
		u, err := url.Parse(nav.URL)
		if err != nil {
			return nil
		}
		raw = u.RawQuery
	default:
		return nil
	}

	params := authutil.ParseQuery(raw)
	if len(params) == 0 {
		return nil
	}
	return params
}

func (a *Authorizer) validateIDToken(idToken, email string, now time.Time) (authutil.Claims, error) {
	if idToken == "" {
		return nil, &IDValidationError{Claim: "id_token missing"}
	}
	claims, err := authutil.ParseJWT(idToken)
	if err != nil {
		return nil, &IDValidationError{Claim: "id_token malformed: " + err.Error()}
	}

	if iss := claims.Issuer(); !slices.Contains(a.cfg.Issuers, iss) {
		return nil, &IDValidationError{Claim: "iss", Got: iss, Want: strings.Join(a.cfg.Issuers, " or ")}
	}
	if aud := claims.Audience(); !slices.Contains(aud, a.cfg.ClientID) {
		return nil, &IDValidationError{Claim: "aud", Got: strings.Join(aud, ","), Want: a.cfg.ClientID}
	}
	if got := claims.Email(); !strings.EqualFold(got, email) {
		return nil, &IDValidationError{Claim: "email", Got: got, Want: email}
	}
	if exp := claims.ExpiresAt(); !exp.After(now) {
		return nil, &IDValidationError{Claim: "exp", Got: exp.UTC().Format(time.RFC3339), Want: "after " + now.UTC().Format(time.RFC3339)}
	}
	return claims, nil
}

// Deauthorize revokes the stored grant of email and deletes its record. The
// record is removed even when revocation fails; the revoke error is returned.
func (a *Authorizer) Deauthorize(ctx context.Context, email string) (err error) {
	logger := logging.WithOperation(a.opts.Logger, "deauthorize").With(logging.UserHash(email))
	ctx, span := instrumentation.StartOAuthSpan(ctx, "revoke", instrumentation.UserHash(email))
	defer func() { instrumentation.EndSpan(span, err) }()

	tok, err := a.store.Get(ctx, email)
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}

	var revokeErr error
	if token := cmp.Or(tok.RefreshToken, tok.AccessToken); token != "" {
		revokeErr = a.revoke(ctx, token)
	}
	if err := a.store.Remove(ctx, email); err != nil {
		return errors.Join(revokeErr, err)
	}
	if revokeErr != nil {
		logger.Warn("token revocation failed, record removed", logging.Err(revokeErr))
		return revokeErr
	}
	logger.Info("account deauthorized")
	return nil
}

func (a *Authorizer) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
