package popup

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoopback(t *testing.T) *Loopback {
	t.Helper()
	return NewLoopback("127.0.0.1:0", nil)
}

func TestLoopback_CapturesRedirect(t *testing.T) {
	l := newTestLoopback(t)

	redirect, err := l.RedirectURL()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirect, "http://127.0.0.1:"))
	assert.True(t, strings.HasSuffix(redirect, CallbackPath))

	// a second call reuses the bound listener
	again, err := l.RedirectURL()
	require.NoError(t, err)
	assert.Equal(t, redirect, again)

	var opened string
	l.openURL = func(u string) error {
		opened = u
		go func() {
			resp, err := http.Get(redirect + "?state=s1&code=c1")
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	w, err := l.Open(context.Background(), "https://accounts.example/auth", Options{Width: DefaultWidth, Height: DefaultHeight})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	assert.Equal(t, "https://accounts.example/auth", opened)

	select {
	case nav, ok := <-w.Navigations():
		require.True(t, ok)
		assert.Equal(t, redirect+"?state=s1&code=c1", nav.URL)
	case <-time.After(5 * time.Second):
		t.Fatal("no navigation received")
	}
}

func TestLoopback_CloseEndsNavigations(t *testing.T) {
	l := newTestLoopback(t)
	l.openURL = func(string) error { return nil }

	w, err := l.Open(context.Background(), "https://accounts.example/auth", Options{})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Navigations()
	assert.False(t, ok)
}

func TestLoopback_ContextCancelClosesWindow(t *testing.T) {
	l := newTestLoopback(t)
	l.openURL = func(string) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	w, err := l.Open(ctx, "https://accounts.example/auth", Options{})
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-w.Navigations():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("window not closed after cancel")
	}
}

func TestLoopback_BrowserFailure(t *testing.T) {
	l := newTestLoopback(t)
	l.openURL = func(string) error { return errors.New("no browser") }

	_, err := l.Open(context.Background(), "https://accounts.example/auth", Options{})
	assert.ErrorContains(t, err, "no browser")
}
