package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mvgmail/internal/instrumentation"
)

// GetAttachment downloads an attachment. Without an AttachmentID the full
// message is fetched first and the part named req.Filename is used.
func (c *Client) GetAttachment(ctx context.Context, req AttachmentRequest) (att *Attachment, err error) {
	if req.MessageID == "" {
		return nil, errors.New("message id is required")
	}

	if req.AttachmentID == "" && req.Filename == "" {
		return nil, fmt.Errorf("%w: neither attachment id nor filename given for message %s", ErrPartNotFound, req.MessageID)
	}

	att = &Attachment{AttachmentID: req.AttachmentID, Filename: req.Filename}
	if att.AttachmentID == "" {
		msg, err := c.GetMessage(ctx, GetMessageRequest{
			Email:       req.Email,
			MessageID:   req.MessageID,
			AccessToken: req.AccessToken,
			Format:      FormatFull,
		})
		if err != nil {
			return nil, err
		}

		part := FindPartByFilename(msg.Payload, req.Filename)
		if part == nil {
			return nil, fmt.Errorf("%w: no part named %q in message %s", ErrPartNotFound, req.Filename, req.MessageID)
		}
		att.MimeType = part.MimeType
		if part.Body != nil {
			att.AttachmentID = part.Body.AttachmentId
			att.Size = part.Body.Size
			// small bodies are inlined and have no attachment id
			if att.AttachmentID == "" {
				if att.Size > MaxAttachmentSize {
					return nil, fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, att.Size)
				}
				att.Data, err = DecodeBase64URL(part.Body.Data)
				return att, err
			}
		}
		if att.AttachmentID == "" {
			return nil, fmt.Errorf("%w: part %q has no body", ErrPartNotFound, req.Filename)
		}
	}

	const op = "messages.attachments.get"
	ctx, done := c.observe(ctx, op, req.Email, instrumentation.MessageID(req.MessageID))
	defer done(&err)

	users, err := c.service(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}
	body, err := users.Messages.Attachments.Get(req.Email, req.MessageID, att.AttachmentID).Context(ctx).Do()
	if err != nil {
		return nil, asAPIError(op, err)
	}
	if body.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, body.Size)
	}

	att.Size = body.Size
	if att.Data, err = DecodeBase64URL(body.Data); err != nil {
		return nil, err
	}
	return att, nil
}

// FindPartByFilename returns the first part, in pre-order, named filename.
// Unnamed parts never match.
func FindPartByFilename(root *gmailapi.MessagePart, filename string) *gmailapi.MessagePart {
	if filename == "" {
		return nil
	}
	var found *gmailapi.MessagePart
	WalkParts(root, func(p *gmailapi.MessagePart) bool {
		if p.Filename == filename {
			found = p
			return false
		}
		return true
	})
	return found
}

// WalkParts visits root and its descendants in pre-order until fn returns false.
func WalkParts(root *gmailapi.MessagePart, fn func(*gmailapi.MessagePart) bool) {
	walkParts(root, fn)
}

func walkParts(part *gmailapi.MessagePart, fn func(*gmailapi.MessagePart) bool) bool {
	if part == nil {
		return true
	}
	if !fn(part) {
		return false
	}
	for _, sub := range part.Parts {
		if !walkParts(sub, fn) {
			return false
		}
	}
	return true
}

// DecodeBase64URL decodes Gmail body data. Padding is optional and standard
// base64 is accepted as a fallback.
func DecodeBase64URL(data string) ([]byte, error) {
	data = strings.TrimRight(strings.TrimSpace(data), "=")
	out, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		if std, stdErr := base64.RawStdEncoding.DecodeString(data); stdErr == nil {
			return std, nil
		}
		return nil, fmt.Errorf("failed to decode body data: %w", err)
	}
	return out, nil
}

// SanitizeFilename strips path separators so an attachment name can be used
// as a local file name.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	return filename
}
