package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mvgmail/internal/gmail"
	"github.com/teemow/mvgmail/internal/google"
	"github.com/teemow/mvgmail/internal/mimetree"
)

var readScopes = []string{google.ScopeGmailReadonly}

func newMessageCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Read messages",
	}
	cmd.AddCommand(
		newMessageGetCmd(opts),
		newMessageBodyCmd(opts),
		newMessageListCmd(opts),
	)
	return cmd
}

func newMessageGetCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <email> <message-id>",
		Short: "Print a message as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tok, err := a.accessToken(ctx, args[0], readScopes)
				if err != nil {
					return err
				}
				msg, err := a.gmail.GetMessage(ctx, gmail.GetMessageRequest{
					Email:       args[0],
					MessageID:   args[1],
					AccessToken: tok,
					Format:      format,
				})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(msg)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", gmail.FormatFull, "Message format: full, metadata, minimal or raw")
	return cmd
}

func newMessageBodyCmd(opts *rootOptions) *cobra.Command {
	var (
		mimeType      string
		signed        bool
		signatureFile string
	)

	cmd := &cobra.Command{
		Use:   "body <email> <message-id>",
		Short: "Print the body of a message",
		Long: `Print the body of a message. For PGP/MIME encrypted messages this is the
armored ciphertext, for signed messages the text of the signed part.

With --signed the raw message is fetched and split into the signed entity and
its detached signature, which can be saved with --signature-out.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				email, id := args[0], args[1]
				tok, err := a.accessToken(ctx, email, readScopes)
				if err != nil {
					return err
				}

				if signed {
					return printSigned(ctx, cmd, a, email, id, tok, signatureFile)
				}

				msg, err := a.gmail.GetMessage(ctx, gmail.GetMessageRequest{Email: email, MessageID: id, AccessToken: tok})
				if err != nil {
					return err
				}
				body, err := a.extractor.ExtractMailBody(ctx, mimetree.BodyRequest{
					Payload:     msg.Payload,
					Email:       email,
					MessageID:   id,
					AccessToken: tok,
					Type:        mimeType,
				})
				if err != nil {
					return err
				}
				if body == "" {
					return fmt.Errorf("message %s has no %s body", id, mimeType)
				}
				fmt.Fprintln(cmd.OutOrStdout(), body)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mimeType, "type", mimetree.TypeTextPlain, "Body MIME type to look for")
	cmd.Flags().BoolVar(&signed, "signed", false, "Split a multipart/signed message into text and signature")
	cmd.Flags().StringVar(&signatureFile, "signature-out", "", "Write the detached signature to this file (with --signed)")
	return cmd
}

func printSigned(ctx context.Context, cmd *cobra.Command, a *app, email, id, tok, signatureFile string) error {
	msg, err := a.gmail.GetMessage(ctx, gmail.GetMessageRequest{Email: email, MessageID: id, AccessToken: tok, Format: gmail.FormatRaw})
	if err != nil {
		return err
	}
	raw, err := mimetree.DecodeBase64URL(msg.Raw)
	if err != nil {
		return fmt.Errorf("failed to decode raw message: %w", err)
	}
	sm, err := mimetree.ExtractSignedMessage(raw)
	if err != nil {
		return err
	}

	if signatureFile != "" {
		if err := os.WriteFile(signatureFile, sm.Signature, 0o644); err != nil {
			return fmt.Errorf("failed to write signature: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Protocol: %s\nMicalg: %s\n\n%s\n", sm.Protocol, sm.MicAlg, sm.Text)
	return nil
}

func newMessageListCmd(opts *rootOptions) *cobra.Command {
	var (
		query      string
		maxResults int64
		pageToken  string
	)

	cmd := &cobra.Command{
		Use:   "list <email>",
		Short: "List message ids matching a Gmail search query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tok, err := a.accessToken(ctx, args[0], readScopes)
				if err != nil {
					return err
				}
				res, err := a.gmail.ListMessages(ctx, gmail.ListRequest{
					Email:       args[0],
					Query:       query,
					MaxResults:  maxResults,
					PageToken:   pageToken,
					AccessToken: tok,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, formatMessageList(res.Messages))
				if res.NextPageToken != "" {
					fmt.Fprintf(out, "next page: %s\n", res.NextPageToken)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Gmail search query, e.g. \"has:attachment is:unread\"")
	cmd.Flags().Int64Var(&maxResults, "max", 20, "Maximum number of messages")
	cmd.Flags().StringVar(&pageToken, "page", "", "Page token from a previous listing")
	return cmd
}

func formatMessageList(msgs []*gmailapi.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s\t%s\n", m.Id, m.ThreadId)
	}
	return b.String()
}
