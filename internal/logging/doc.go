// Package logging provides structured logging helpers for mvgmail.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and makes sure account addresses and OAuth tokens never show
// up in clear text.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "gmail.get_message")
//	logger.Info("message fetched",
//	    logging.UserHash(email),
//	    logging.MessageID(id))
//
// # Security Considerations
//
//   - Account emails are hashed with UserHash before they reach info logs
//   - Tokens are reduced to a length marker by SanitizeToken
package logging
