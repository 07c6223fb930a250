// Package tokenstore keeps the OAuth token record of every authorized Gmail
// account in one persisted mapping, keyed by account email.
//
// The whole mapping is read, modified and written back on every change.
// Store serialises these read-modify-write cycles, so concurrent updates to
// different accounts never lose each other's writes.
package tokenstore
