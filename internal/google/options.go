package google

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
)

// Options carries the collaborators shared by Authorizer, TokenProvider and
// LicenseChecker. Zero values are replaced with defaults.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	Now        func() time.Time
}

func (o Options) withDefaults(component string) Options {
	if o.HTTPClient == nil {
		o.HTTPClient = NewHTTPClient()
	}
	o.Logger = logging.WithComponent(logging.OrDefault(o.Logger), component)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// oauthContext makes the oauth2 package use the injected client.
func (o Options) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.HTTPClient)
}

func expiryMillis(now time.Time, tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return now.Add(time.Duration(tok.ExpiresIn) * time.Second).UnixMilli()
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.UnixMilli()
	}
	return now.UnixMilli()
}

func extraString(tok *oauth2.Token, key string) string {
	if v, ok := tok.Extra(key).(string); ok {
		return v
	}
	return ""
}
