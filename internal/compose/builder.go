package compose

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/teemow/mvgmail/internal/logging"
)

// MaxMessageSize is the largest message Gmail accepts for sending.
const MaxMessageSize = 25 * 1024 * 1024

// ErrBuildFailed is returned when a Builder produces no message.
var ErrBuildFailed = errors.New("failed to build message")

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Input describes the message to build.
type Input struct {
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Date    time.Time

	// Text is the plain text body. Ignored when Armored is set.
	Text        string
	Attachments []Attachment

	// Headers are extra header fields, set after the standard ones.
	Headers map[string]string

	// Armored is an ASCII armored PGP message. When set the message is a
	// PGP/MIME multipart/encrypted envelope around it.
	Armored string

	// Quota is the maximum size of the built message in bytes, 0 for none.
	Quota int
}

// Builder turns an Input into raw message bytes. A nil result with a nil
// error means the message could not be built within the quota.
type Builder interface {
	Build(in Input) ([]byte, error)
}

// BuildMail builds in with b, limited to MaxMessageSize.
func BuildMail(b Builder, in Input) ([]byte, error) {
	in.Quota = MaxMessageSize
	data, err := b.Build(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	if data == nil {
		return nil, ErrBuildFailed
	}
	return data, nil
}

// MailBuilder is the go-message Builder.
type MailBuilder struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewMailBuilder returns a MailBuilder.
func NewMailBuilder(logger *slog.Logger) *MailBuilder {
	return &MailBuilder{
		logger: logging.WithComponent(logging.OrDefault(logger), "compose"),
		now:    time.Now,
	}
}

// Build implements Builder.
func (b *MailBuilder) Build(in Input) ([]byte, error) {
	header, err := b.header(in)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch {
	case in.Armored != "":
		err = writeEncrypted(&buf, header, in.Armored)
	case len(in.Attachments) == 0:
		err = writeSingle(&buf, header, in.Text)
	default:
		err = writeMixed(&buf, header, in.Text, in.Attachments)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}

	if in.Quota > 0 && buf.Len() > in.Quota {
		b.logger.Warn("message exceeds quota", "size", buf.Len(), "quota", in.Quota)
		return nil, nil
	}
	b.logger.Debug("message built", "size", buf.Len(), "attachments", len(in.Attachments), "encrypted", in.Armored != "")
	return buf.Bytes(), nil
}

func (b *MailBuilder) header(in Input) (mail.Header, error) {
	var h mail.Header

	if in.From != "" {
		from, err := ParseAddresses(in.From)
		if err != nil {
			return h, err
		}
		h.SetAddressList("From", from)
	}
	recipients := []struct {
		key  string
		list []string
	}{{"To", in.To}, {"Cc", in.Cc}, {"Bcc", in.Bcc}}
	for _, r := range recipients {
		addrs, err := parseAddressFields(r.list)
		if err != nil {
			return h, err
		}
		if len(addrs) > 0 {
			h.SetAddressList(r.key, addrs)
		}
	}

	date := in.Date
	if date.IsZero() {
		date = b.now()
	}
	h.SetDate(date)
	h.SetSubject(in.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return h, fmt.Errorf("failed to generate message id: %w", err)
	}

	for _, key := range slices.Sorted(maps.Keys(in.Headers)) {
		h.Set(key, in.Headers[key])
	}
	return h, nil
}

func writeSingle(w io.Writer, header mail.Header, text string) error {
	header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	body, err := mail.CreateSingleInlineWriter(w, header)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(body, text); err != nil {
		return err
	}
	return body.Close()
}

func writeMixed(w io.Writer, header mail.Header, text string, attachments []Attachment) error {
	mw, err := mail.CreateWriter(w, header)
	if err != nil {
		return err
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(tw, text); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	for _, att := range attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(cmp.Or(att.ContentType, "application/octet-stream"), nil)
		ah.SetFilename(att.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return err
		}
		if _, err := aw.Write(att.Data); err != nil {
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}
	return mw.Close()
}

// writeEncrypted writes an RFC 3156 multipart/encrypted message.
func writeEncrypted(w io.Writer, header mail.Header, armored string) error {
	header.SetContentType("multipart/encrypted", map[string]string{"protocol": "application/pgp-encrypted"})
	mw, err := message.CreateWriter(w, header.Header)
	if err != nil {
		return err
	}

	var vh message.Header
	vh.SetContentType("application/pgp-encrypted", nil)
	vh.Set("Content-Description", "PGP/MIME version identification")
	if err := writePart(mw, vh, "Version: 1\r\n"); err != nil {
		return err
	}

	var dh message.Header
	dh.SetContentType("application/octet-stream", map[string]string{"name": "encrypted.asc"})
	dh.Set("Content-Description", "OpenPGP encrypted message")
	dh.SetContentDisposition("inline", map[string]string{"filename": "encrypted.asc"})
	if err := writePart(mw, dh, armored); err != nil {
		return err
	}
	return mw.Close()
}

func writePart(mw *message.Writer, h message.Header, body string) error {
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return err
	}
	return pw.Close()
}
