package google

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

// ErrNoToken is returned by TokenSource when no usable token exists and the
// account has to be authorized interactively.
var ErrNoToken = errors.New("no valid token for account, run authorize first")

// TokenProvider hands out stored access tokens, refreshing expired ones.
type TokenProvider struct {
	cfg   Config
	store *tokenstore.Store
	opts  Options
}

// NewTokenProvider returns a TokenProvider.
func NewTokenProvider(cfg Config, store *tokenstore.Store, opts Options) *TokenProvider {
	return &TokenProvider{cfg: cfg, store: store, opts: opts.withDefaults("token_provider")}
}

// GetAccessToken returns a usable access token for email covering scopes
// (plus BaseScopes). It returns "" with a nil error when the account has no
// record, lacks a scope, or holds an expired token that cannot be refreshed.
func (p *TokenProvider) GetAccessToken(ctx context.Context, email string, scopes []string) (string, error) {
	want := WithBaseScopes(scopes)

	tok, err := p.store.Get(ctx, email)
	if err != nil {
		return "", err
	}
	if tok == nil || !tok.HasScopes(want) {
		return "", nil
	}
	if !tok.Expired(p.opts.Now()) {
		return tok.AccessToken, nil
	}
	if tok.RefreshToken == "" {
		return "", nil
	}
	return p.refresh(ctx, email, tok)
}

func (p *TokenProvider) refresh(ctx context.Context, email string, stored *tokenstore.StoredToken) (_ string, err error) {
	logger := logging.WithOperation(p.opts.Logger, "token_refresh").With(logging.UserHash(email))
	ctx, span := instrumentation.StartOAuthSpan(ctx, "refresh", instrumentation.UserHash(email))
	defer func() { instrumentation.EndSpan(span, err) }()

	conf := p.cfg.oauth2Config("", stored.Scopes())
	now := p.opts.Now()
	tok, err := conf.TokenSource(p.opts.oauthContext(ctx), &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			p.opts.Metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
			logger.Info("refresh token rejected", "error_code", rErr.ErrorCode)
			return "", nil
		}
		p.opts.Metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	patch := tokenstore.Patch{
		AccessToken:    tokenstore.String(tok.AccessToken),
		AccessTokenExp: tokenstore.Int64(expiryMillis(now, tok)),
	}
	if scope := extraString(tok, "scope"); scope != "" {
		patch.Scope = tokenstore.String(scope)
	}
	if tok.RefreshToken != "" && tok.RefreshToken != stored.RefreshToken {
		patch.RefreshToken = tokenstore.String(tok.RefreshToken)
	}
	if err := p.store.Set(ctx, email, patch); err != nil {
		return "", err
	}

	p.opts.Metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	logger.Debug("access token refreshed", logging.Token(tok.AccessToken))
	return tok.AccessToken, nil
}

// HasTokenForAccount reports whether a record exists for email.
func (p *TokenProvider) HasTokenForAccount(ctx context.Context, email string) bool {
	tok, err := p.store.Get(ctx, email)
	return err == nil && tok != nil
}

// TokenSource adapts the provider to oauth2.TokenSource. Token returns
// ErrNoToken when GetAccessToken yields nothing.
func (p *TokenProvider) TokenSource(ctx context.Context, email string, scopes []string) oauth2.TokenSource {
	return &providerTokenSource{ctx: ctx, provider: p, email: email, scopes: scopes}
}

type providerTokenSource struct {
	ctx      context.Context
	provider *TokenProvider
	email    string
	scopes   []string
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.provider.GetAccessToken(s.ctx, s.email, s.scopes)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}
