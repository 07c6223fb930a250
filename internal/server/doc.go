// Package server runs the optional side-car HTTP listener that exposes
// Prometheus metrics and a liveness probe while a long-running mvgmail
// command (for example an interactive authorization) is active.
package server
