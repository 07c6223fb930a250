package mimetree

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// ErrNotSigned is returned by ExtractSignedMessage for messages that are not
// multipart/signed.
var ErrNotSigned = errors.New("message is not multipart/signed")

// SignedMessage is the content of a PGP/MIME signed message.
type SignedMessage struct {
	// SignedData is the first part exactly as it was signed, headers included.
	SignedData []byte

	// Signature is the detached signature, transfer encoding removed.
	Signature []byte

	// Protocol and MicAlg are the multipart/signed parameters.
	Protocol string
	MicAlg   string

	// Text is the first text/plain body inside the signed part.
	Text string
}

// ExtractSignedMessage parses a raw RFC 822 message and splits its
// multipart/signed body into the signed entity and the signature.
func ExtractSignedMessage(raw []byte) (*SignedMessage, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	header, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	mh := message.Header{Header: header}
	mediaType, params, err := mh.ContentType()
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}
	if mediaType != TypeSigned {
		return nil, fmt.Errorf("%w: %s", ErrNotSigned, mediaType)
	}

	mr := textproto.NewMultipartReader(br, params["boundary"])

	signedPart, err := mr.NextPart()
	if err != nil {
		return nil, fmt.Errorf("failed to read signed part: %w", err)
	}
	var signed bytes.Buffer
	if err := textproto.WriteHeader(&signed, signedPart.Header); err != nil {
		return nil, fmt.Errorf("failed to copy signed part header: %w", err)
	}
	if _, err := io.Copy(&signed, signedPart); err != nil {
		return nil, fmt.Errorf("failed to read signed part: %w", err)
	}

	sigPart, err := mr.NextPart()
	if err != nil {
		return nil, fmt.Errorf("failed to read signature part: %w", err)
	}
	sigEntity, err := message.New(message.Header{Header: sigPart.Header}, sigPart)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("failed to read signature part: %w", err)
	}
	signature, err := io.ReadAll(sigEntity.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}

	text, err := firstPlainText(signed.Bytes())
	if err != nil {
		return nil, err
	}

	return &SignedMessage{
		SignedData: signed.Bytes(),
		Signature:  signature,
		Protocol:   params["protocol"],
		MicAlg:     params["micalg"],
		Text:       text,
	}, nil
}

// firstPlainText returns the first inline text/plain body of entity, decoded.
func firstPlainText(entity []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(entity))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("failed to parse signed part: %w", err)
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("failed to read signed part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if t, _, _ := h.ContentType(); t != "" && !strings.EqualFold(t, TypeTextPlain) {
			continue
		}
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read signed text: %w", err)
		}
		return string(data), nil
	}
}
