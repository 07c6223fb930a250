package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Attribute keys shared by every mvgmail logger.
const (
	KeyOperation = "operation"
	KeyComponent = "component"
	KeyUserHash  = "user_hash"
	KeyDomain    = "user_domain"
	KeyMessageID = "message_id"
	KeyScope     = "scope"
	KeyToken     = "token"
	KeyTraceID   = "trace_id"
	KeyError     = "error"
)

// New returns a text logger writing to w, at debug level when debug is set.
func New(w io.Writer, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OrDefault returns logger, or slog.Default() when logger is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// WithOperation tags logger with an operation name such as "authorize".
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

// WithComponent tags logger with the package that owns it.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// TraceID links a log line to its span. An empty id yields an empty group,
// which slog drops.
func TraceID(id string) slog.Attr {
	if id == "" {
		return slog.Group("")
	}
	return slog.String(KeyTraceID, id)
}

// Scope joins scopes the way they are stored, space separated.
func Scope(scopes []string) slog.Attr {
	return slog.String(KeyScope, strings.Join(scopes, " "))
}

// Err returns the error attribute. A nil err yields an empty group, which
// slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns "user:" plus the first 8 bytes of the SHA-256 of
// the lower-cased address, hex encoded.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return "user:" + hex.EncodeToString(sum[:8])
}

// UserHash is the only way account addresses reach info level logs.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken reduces a token to its length.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// Token returns the sanitized token attribute.
func Token(token string) slog.Attr {
	return slog.String(KeyToken, SanitizeToken(token))
}

// ExtractDomain returns the lower-cased domain of a single-@ address, or "".
func ExtractDomain(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return strings.ToLower(domain)
}

// Domain logs the account domain, which is coarse enough for info logs.
func Domain(email string) slog.Attr {
	return slog.String(KeyDomain, ExtractDomain(email))
}
