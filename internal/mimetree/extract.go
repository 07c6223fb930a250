package mimetree

import (
	"context"
	"fmt"
	"log/slog"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mvgmail/internal/gmail"
	"github.com/teemow/mvgmail/internal/logging"
)

// MIME types with special handling.
const (
	TypeTextPlain    = "text/plain"
	TypeEncrypted    = "multipart/encrypted"
	TypeSigned       = "multipart/signed"
	TypePGPSignature = "application/pgp-signature"
	TypePGPEncrypted = "application/pgp-encrypted"
	TypeOctetStream  = "application/octet-stream"
)

// AttachmentFetcher downloads attachment bodies. *gmail.Client satisfies it.
type AttachmentFetcher interface {
	GetAttachment(ctx context.Context, req gmail.AttachmentRequest) (*gmail.Attachment, error)
}

// BodyRequest identifies the message whose body is extracted.
type BodyRequest struct {
	Payload     *gmailapi.MessagePart
	Email       string
	MessageID   string
	AccessToken string

	// Type is the wanted body type, TypeTextPlain by default.
	Type string
}

// Extractor pulls message bodies out of payload trees.
type Extractor struct {
	fetcher AttachmentFetcher
	logger  *slog.Logger
}

// NewExtractor returns an Extractor fetching attachment bodies with fetcher.
func NewExtractor(fetcher AttachmentFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, logger: logging.WithComponent(logging.OrDefault(logger), "mimetree")}
}

// ExtractMailBody returns the body of the message in req:
//
//   - multipart/encrypted: the second part, which holds the armored ciphertext;
//   - multipart/signed with a PGP signature: the first part of req.Type found
//     among the signed envelope's parts;
//   - anything else: the first part of req.Type in the tree.
//
// It returns "" when no such part exists.
func (e *Extractor) ExtractMailBody(ctx context.Context, req BodyRequest) (string, error) {
	wantType := req.Type
	if wantType == "" {
		wantType = TypeTextPlain
	}

	root := FromGmail(req.Payload)
	if root == nil {
		return "", nil
	}
	children := Children(root)

	var node Part
	switch {
	case root.MimeType() == TypeEncrypted:
		if len(children) < 2 {
			return "", nil
		}
		node = children[1]
	case root.MimeType() == TypeSigned && len(children) >= 2 && children[1].MimeType() == TypePGPSignature:
		node = FindNode(children, []string{wantType})
	default:
		node = FindNode([]Part{root}, []string{wantType})
	}
	if node == nil {
		return "", nil
	}

	e.logger.Debug("extracting body", logging.MessageID(req.MessageID), "envelope", root.MimeType(), "part_type", node.MimeType())
	return e.readBody(ctx, req, node)
}

func (e *Extractor) readBody(ctx context.Context, req BodyRequest, node Part) (string, error) {
	switch p := node.(type) {
	case *Inline:
		data, err := DecodeBase64URL(p.Data)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case *AttachmentRef:
		if e.fetcher == nil {
			return "", fmt.Errorf("no attachment fetcher for part %q", p.Name)
		}
		att, err := e.fetcher.GetAttachment(ctx, gmail.AttachmentRequest{
			Email:        req.Email,
			MessageID:    req.MessageID,
			AttachmentID: p.AttachmentID,
			Filename:     p.Name,
			AccessToken:  req.AccessToken,
		})
		if err != nil {
			return "", err
		}
		return string(att.Data), nil
	}
	return "", nil
}
