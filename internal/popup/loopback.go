package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/teemow/mvgmail/internal/logging"
)

const (
	// DefaultLoopbackAddr is where the redirect listener binds by default.
	DefaultLoopbackAddr = "127.0.0.1:8085"

	// CallbackPath is the redirect path served by the listener.
	CallbackPath = "/oauth2/callback"
)

const completionPage = `<!DOCTYPE html>
<html><head><title>mvgmail</title></head>
<body><p>Authorization received. You can close this window.</p></body></html>`

// Loopback opens the consent page in the system browser and captures the
// redirect on a local HTTP listener.
type Loopback struct {
	addr    string
	logger  *slog.Logger
	openURL func(string) error

	mu sync.Mutex
	ln net.Listener
}

// NewLoopback returns a Loopback bound lazily to addr.
func NewLoopback(addr string, logger *slog.Logger) *Loopback {
	if addr == "" {
		addr = DefaultLoopbackAddr
	}
	return &Loopback{
		addr:    addr,
		logger:  logging.WithComponent(logging.OrDefault(logger), "popup"),
		openURL: browser.OpenURL,
	}
}

// RedirectURL binds the listener if needed and returns the callback URL.
func (l *Loopback) RedirectURL() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.listenLocked(); err != nil {
		return "", err
	}
	return "http://" + l.ln.Addr().String() + CallbackPath, nil
}

func (l *Loopback) listenLocked() error {
	if l.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}
	l.ln = ln
	return nil
}

// take hands the bound listener to a window; the next RedirectURL rebinds.
func (l *Loopback) take() (net.Listener, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.listenLocked(); err != nil {
		return nil, err
	}
	ln := l.ln
	l.ln = nil
	return ln, nil
}

// Open serves the callback and launches the browser on url.
func (l *Loopback) Open(ctx context.Context, url string, _ Options) (Window, error) {
	ln, err := l.take()
	if err != nil {
		return nil, err
	}

	w := &loopbackWindow{
		navs:   make(chan Navigation, 4),
		done:   make(chan struct{}),
		logger: l.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, w.handleCallback)
	w.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := w.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Warn("callback listener stopped", logging.Err(err))
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.done:
		}
	}()

	l.logger.Info("opening browser for authorization", "redirect_addr", ln.Addr().String())
	if err := l.openURL(url); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	return w, nil
}

type loopbackWindow struct {
	srv    *http.Server
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	navs   chan Navigation
	done   chan struct{}
}

func (w *loopbackWindow) Navigations() <-chan Navigation {
	return w.navs
}

func (w *loopbackWindow) handleCallback(rw http.ResponseWriter, r *http.Request) {
	nav := Navigation{URL: "http://" + r.Host + r.URL.RequestURI()}

	w.mu.Lock()
	if !w.closed {
		select {
		case w.navs <- nav:
		default:
			w.logger.Warn("dropping callback navigation, window busy")
		}
	}
	w.mu.Unlock()

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write([]byte(completionPage))
}

func (w *loopbackWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.navs)
	close(w.done)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return w.srv.Shutdown(ctx)
}
