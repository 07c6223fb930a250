// Package popuptest provides a scripted popup.Opener for tests of the
// authorization flow.
package popuptest

import (
	"context"
	"sync"

	"github.com/teemow/mvgmail/internal/popup"
)

// Scripted is a popup.Opener that replays fixed navigations.
type Scripted struct {
	// Navigations are delivered in order after Open.
	Navigations []popup.Navigation

	// Script, when set, computes the navigations from the opened URL and
	// takes precedence over Navigations.
	Script func(url string) []popup.Navigation

	// KeepOpen leaves the window open after the last navigation instead of
	// closing it.
	KeepOpen bool

	// Redirect, when set, makes the opener act as a popup.RedirectOpener.
	Redirect string

	// Err is returned from Open when set.
	Err error

	mu     sync.Mutex
	opened []string
	opts   []popup.Options
	wins   []*scriptedWindow
}

// Open records url and returns a window that plays back s.Navigations.
func (s *Scripted) Open(_ context.Context, url string, opts popup.Options) (popup.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opened = append(s.opened, url)
	s.opts = append(s.opts, opts)
	if s.Err != nil {
		return nil, s.Err
	}

	navs := s.Navigations
	if s.Script != nil {
		navs = s.Script(url)
	}
	w := &scriptedWindow{navs: make(chan popup.Navigation, len(navs))}
	for _, n := range navs {
		w.navs <- n
	}
	if !s.KeepOpen {
		w.closed = true
		close(w.navs)
	}
	s.wins = append(s.wins, w)
	return w, nil
}

// Opened returns the URLs passed to Open.
func (s *Scripted) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

// OpenOptions returns the options passed to Open.
func (s *Scripted) OpenOptions() []popup.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]popup.Options(nil), s.opts...)
}

// AllClosed reports whether every opened window has been closed by its caller.
func (s *Scripted) AllClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wins {
		if !w.closeCalled() {
			return false
		}
	}
	return true
}

// WithRedirect wraps s so that it satisfies popup.RedirectOpener.
func (s *Scripted) WithRedirect() popup.RedirectOpener {
	return scriptedRedirect{s}
}

type scriptedRedirect struct{ *Scripted }

func (r scriptedRedirect) RedirectURL() (string, error) {
	return r.Redirect, nil
}

type scriptedWindow struct {
	mu       sync.Mutex
	navs     chan popup.Navigation
	closed   bool
	closeHit bool
}

func (w *scriptedWindow) Navigations() <-chan popup.Navigation {
	return w.navs
}

func (w *scriptedWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeHit = true
	if !w.closed {
		w.closed = true
		close(w.navs)
	}
	return nil
}

func (w *scriptedWindow) closeCalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeHit
}
