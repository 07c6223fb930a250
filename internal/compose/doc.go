// Package compose builds sendable RFC 822 messages with go-message.
//
// The Builder interface lets callers substitute their own MIME builder;
// BuildMail enforces the Gmail message size limit on any of them.
package compose
