// Package mimetree models a Gmail message payload as a tree of MIME parts and
// extracts readable bodies from it, including PGP/MIME encrypted and signed
// envelopes.
package mimetree
