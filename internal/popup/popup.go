package popup

import "context"

// Default popup dimensions.
const (
	DefaultWidth  = 500
	DefaultHeight = 650
)

// Navigation is one page load observed in a popup window.
type Navigation struct {
	URL   string
	Title string
}

// Options control how the popup is presented. Openers that cannot size a
// window ignore Width and Height.
type Options struct {
	Width  int
	Height int
}

// Window is an open popup.
type Window interface {
	// Navigations delivers page loads in order. It is closed when the
	// window closes, either by the user or by Close.
	Navigations() <-chan Navigation

	// Close releases the window. It is safe to call more than once.
	Close() error
}

// Opener opens popup windows.
type Opener interface {
	Open(ctx context.Context, url string, opts Options) (Window, error)
}

// RedirectOpener is implemented by openers that receive the authorization
// response on their own redirect URL rather than through the window title.
type RedirectOpener interface {
	Opener
	RedirectURL() (string, error)
}
