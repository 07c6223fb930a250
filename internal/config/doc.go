// Package config loads mvgmail settings from mvgmail.yaml, MVGMAIL_* environment
// variables and an optional .env file, and turns them into the storage and
// Google configuration the commands run with.
package config
