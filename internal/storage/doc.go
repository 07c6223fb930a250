// Package storage is the key/value persistence primitive used for OAuth
// token records.
//
// Values are JSON encoded by Codec, optionally sealed with AES-256-GCM, and
// handed to a Backend that only deals in bytes. Backends are provided for a
// cache directory on disk, the operating system keyring, a SQLite database
// and process memory.
package storage
