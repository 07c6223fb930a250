package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/mvgmail/internal/gmail"
	"github.com/teemow/mvgmail/internal/mimetree"
)

func newAttachmentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachment",
		Short: "List and download attachments",
	}
	cmd.AddCommand(newAttachmentListCmd(opts), newAttachmentGetCmd(opts))
	return cmd
}

func newAttachmentListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <email> <message-id>",
		Short: "List the attachments of a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tok, err := a.accessToken(ctx, args[0], readScopes)
				if err != nil {
					return err
				}
				msg, err := a.gmail.GetMessage(ctx, gmail.GetMessageRequest{Email: args[0], MessageID: args[1], AccessToken: tok})
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PART\tFILENAME\tTYPE\tSIZE\tATTACHMENT ID")
				for _, att := range mimetree.ListAttachments(msg.Payload) {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", att.PartID, att.Filename, att.MimeType, att.Size, att.AttachmentID)
				}
				return w.Flush()
			})
		},
	}
}

func newAttachmentGetCmd(opts *rootOptions) *cobra.Command {
	var (
		attachmentID string
		filename     string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "get <email> <message-id>",
		Short: "Download an attachment by id or filename",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if attachmentID == "" && filename == "" {
				return fmt.Errorf("either --id or --name is required")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tok, err := a.accessToken(ctx, args[0], readScopes)
				if err != nil {
					return err
				}
				att, err := a.gmail.GetAttachment(ctx, gmail.AttachmentRequest{
					Email:        args[0],
					MessageID:    args[1],
					AttachmentID: attachmentID,
					Filename:     filename,
					AccessToken:  tok,
				})
				if err != nil {
					return err
				}

				if output == "-" {
					_, err := cmd.OutOrStdout().Write(att.Data)
					return err
				}
				path := attachmentPath(output, att)
				if err := os.WriteFile(path, att.Data, 0o644); err != nil {
					return fmt.Errorf("failed to write attachment: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, len(att.Data))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&attachmentID, "id", "", "Attachment id")
	cmd.Flags().StringVar(&filename, "name", "", "Attachment filename")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory, - for stdout (default: the attachment filename)")
	return cmd
}

// attachmentPath picks the file to save att to. A directory output keeps the
// sanitized attachment filename.
func attachmentPath(output string, att *gmail.Attachment) string {
	name := gmail.SanitizeFilename(att.Filename)
	if name == "" {
		name = "attachment-" + att.AttachmentID
	}
	if output == "" {
		return name
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}
	return output
}
