// Package popup abstracts the browser window in which the user grants
// consent during an OAuth authorization.
//
// An Opener opens a URL and returns a Window. The Window reports every
// navigation it observes on a channel that is closed when the window goes
// away. Loopback drives the system browser and observes the redirect on a
// local HTTP listener. Package popuptest has a scripted Opener for tests.
package popup
