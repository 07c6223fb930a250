package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/teemow/mvgmail/internal/compose"
	"github.com/teemow/mvgmail/internal/config"
	"github.com/teemow/mvgmail/internal/gmail"
	"github.com/teemow/mvgmail/internal/google"
	"github.com/teemow/mvgmail/internal/instrumentation"
	"github.com/teemow/mvgmail/internal/logging"
	"github.com/teemow/mvgmail/internal/mimetree"
	"github.com/teemow/mvgmail/internal/popup"
	"github.com/teemow/mvgmail/internal/server"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

// app holds the collaborators one command invocation runs with.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	provider *instrumentation.Provider
	closers  []io.Closer
	stopping context.CancelFunc
	served   chan error

	store      *tokenstore.Store
	tokens     *google.TokenProvider
	license    *google.LicenseChecker
	authorizer *google.Authorizer
	gmail      *gmail.Client
	extractor  *mimetree.Extractor
	builder    compose.Builder
}

func newApp(ctx context.Context, opts *rootOptions) (_ *app, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	a := &app{cfg: cfg, logger: logging.New(os.Stderr, cfg.Debug)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.provider, err = instrumentation.NewProvider(ctx, cfg.Instrumentation(version), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	if cfg.Metrics.Addr != "" && a.provider.PrometheusEnabled() {
		if err := a.serveMetrics(ctx); err != nil {
			return nil, err
		}
	}

	backend, closer, err := cfg.OpenStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to open token storage: %w", err)
	}
	a.closers = append(a.closers, closer)
	a.store = tokenstore.New(backend, a.logger)

	gcfg := cfg.Google()
	gopts := google.Options{
		HTTPClient: google.NewHTTPClient(),
		Logger:     a.logger,
		Metrics:    a.provider.Metrics(),
	}
	a.tokens = google.NewTokenProvider(gcfg, a.store, gopts)
	a.license = google.NewLicenseChecker(gcfg, a.store, gopts)
	a.authorizer = google.NewAuthorizer(gcfg, a.store, popup.NewLoopback(cfg.OAuth.LoopbackAddr, a.logger), a.license, gopts)
	a.gmail = gmail.NewClient(gcfg.APIBaseURL, gmail.Options{
		HTTPClient: gopts.HTTPClient,
		Logger:     a.logger,
		Metrics:    a.provider.Metrics(),
	})
	a.extractor = mimetree.NewExtractor(a.gmail, a.logger)
	a.builder = compose.NewMailBuilder(a.logger)
	return a, nil
}

func (a *app) serveMetrics(ctx context.Context) error {
	srv, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:     a.cfg.Metrics.Addr,
		Provider: a.provider,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("metrics server failed to start: %w", err)
	}

	ctx, a.stopping = context.WithCancel(ctx)
	a.served = make(chan error, 1)
	go func() {
		a.served <- srv.ServeListener(ctx, ln)
	}()
	return nil
}

// accessToken returns a token for email or an error telling the user to
// authorize first.
func (a *app) accessToken(ctx context.Context, email string, scopes []string) (string, error) {
	tok, err := a.tokens.GetAccessToken(ctx, email, scopes)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", fmt.Errorf("no valid token for %s, run `mvgmail authorize %s` first", email, email)
	}
	return tok, nil
}

// Close stops the metrics server, flushes telemetry and releases storage.
func (a *app) Close() error {
	var errs []error
	if a.stopping != nil {
		a.stopping()
		if err := <-a.served; err != nil {
			errs = append(errs, err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
