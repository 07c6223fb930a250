package cmd

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/mvgmail/internal/compose"
	"github.com/teemow/mvgmail/internal/gmail"
	"github.com/teemow/mvgmail/internal/google"
)

type sendOptions struct {
	to          []string
	cc          []string
	bcc         []string
	subject     string
	body        string
	bodyFile    string
	armoredFile string
	attach      []string
	headers     []string
	threadID    string
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	so := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send <email>",
		Short: "Build and send a message from an authorized account",
		Long: `Build a message and send it through the Gmail API. The body is read from
--body, --body-file or stdin ("-"). With --armored the file is sent as a
PGP/MIME encrypted message instead of a plain text body.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			in, err := so.input(email, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				raw, err := compose.BuildMail(a.builder, in)
				if err != nil {
					return err
				}
				tok, err := a.accessToken(ctx, email, []string{google.ScopeGmailSend})
				if err != nil {
					return err
				}

				var id string
				if so.threadID != "" {
					sent, err := a.gmail.SendMessageMeta(ctx, gmail.SendRequest{Email: email, Raw: raw, ThreadID: so.threadID, AccessToken: tok})
					if err != nil {
						return err
					}
					id = sent.Id
				} else {
					sent, err := a.gmail.SendMessage(ctx, email, raw, tok)
					if err != nil {
						return err
					}
					id = sent.Id
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent message %s\n", id)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&so.to, "to", nil, "Recipient address list (repeatable)")
	f.StringArrayVar(&so.cc, "cc", nil, "Cc address list (repeatable)")
	f.StringArrayVar(&so.bcc, "bcc", nil, "Bcc address list (repeatable)")
	f.StringVarP(&so.subject, "subject", "s", "", "Subject")
	f.StringVar(&so.body, "body", "", "Plain text body")
	f.StringVar(&so.bodyFile, "body-file", "", "Read the plain text body from a file, - for stdin")
	f.StringVar(&so.armoredFile, "armored", "", "Send this ASCII armored PGP message as a PGP/MIME encrypted message")
	f.StringArrayVarP(&so.attach, "attach", "a", nil, "Attach a file (repeatable)")
	f.StringArrayVarP(&so.headers, "header", "H", nil, `Extra header "Name: value" (repeatable)`)
	f.StringVar(&so.threadID, "thread", "", "Send as a reply in this thread")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (so *sendOptions) input(from string, stdin io.Reader) (compose.Input, error) {
	in := compose.Input{
		From:    from,
		To:      so.to,
		Cc:      so.cc,
		Bcc:     so.bcc,
		Subject: so.subject,
		Text:    so.body,
	}

	if so.bodyFile != "" {
		text, err := readInput(so.bodyFile, stdin)
		if err != nil {
			return in, fmt.Errorf("failed to read body: %w", err)
		}
		in.Text = text
	}
	if so.armoredFile != "" {
		armored, err := readInput(so.armoredFile, stdin)
		if err != nil {
			return in, fmt.Errorf("failed to read armored message: %w", err)
		}
		in.Armored = armored
	}

	headers, err := parseHeaders(so.headers)
	if err != nil {
		return in, err
	}
	in.Headers = headers

	for _, path := range so.attach {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, fmt.Errorf("failed to read attachment: %w", err)
		}
		in.Attachments = append(in.Attachments, compose.Attachment{
			Filename:    filepath.Base(path),
			ContentType: contentType(path),
			Data:        data,
		})
	}
	return in, nil
}

// contentType guesses the media type of path from its extension, without
// parameters. Unknown extensions yield "".
func contentType(path string) string {
	t, _, _ := strings.Cut(mime.TypeByExtension(filepath.Ext(path)), ";")
	return strings.TrimSpace(t)
}

func readInput(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	return string(data), err
}

// parseHeaders turns "Name: value" flags into a header map.
func parseHeaders(fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(fields))
	for _, f := range fields {
		name, value, ok := strings.Cut(f, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", f)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
