package mimetree

import (
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mvgmail/internal/gmail"
)

// AttachmentInfo describes a named part of a message.
type AttachmentInfo struct {
	PartID       string
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
}

// ListAttachments returns every part with a filename, in pre-order.
func ListAttachments(payload *gmailapi.MessagePart) []AttachmentInfo {
	var out []AttachmentInfo
	gmail.WalkParts(payload, func(p *gmailapi.MessagePart) bool {
		if p.Filename == "" {
			return true
		}
		info := AttachmentInfo{PartID: p.PartId, Filename: p.Filename, MimeType: p.MimeType}
		if p.Body != nil {
			info.AttachmentID = p.Body.AttachmentId
			info.Size = p.Body.Size
		}
		out = append(out, info)
		return true
	})
	return out
}

// DecodeBase64URL decodes Gmail body data, tolerating missing padding.
func DecodeBase64URL(data string) ([]byte, error) {
	return gmail.DecodeBase64URL(data)
}
