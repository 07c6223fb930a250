package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mvgmail/internal/google"
	"github.com/teemow/mvgmail/internal/tokenstore"
)

func newAccountsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the authorized accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				accounts, err := a.store.Accounts(ctx)
				if err != nil {
					return err
				}
				if len(accounts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No authorized accounts.")
					return nil
				}

				tokens := make([]*tokenstore.StoredToken, 0, len(accounts))
				for _, email := range accounts {
					tok, err := a.store.Get(ctx, email)
					if err != nil {
						return err
					}
					tokens = append(tokens, tok)
				}
				return writeAccounts(cmd.OutOrStdout(), accounts, tokens, time.Now())
			})
		},
	}
}

func writeAccounts(out io.Writer, accounts []string, tokens []*tokenstore.StoredToken, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tTOKEN\tREFRESH\tDOMAIN\tLICENSE")
	for i, email := range accounts {
		tok := tokens[i]
		if tok == nil {
			continue
		}
		refresh := "no"
		if tok.RefreshToken != "" {
			refresh = "yes"
		}
		domain := tok.GSuite
		if domain == "" {
			domain = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", email, tokenStatus(tok, now), refresh, domain, licenseStatus(tok, now))
	}
	return w.Flush()
}

func tokenStatus(tok *tokenstore.StoredToken, now time.Time) string {
	if tok.Expired(now) {
		return "expired"
	}
	left := time.UnixMilli(tok.AccessTokenExp).Sub(now).Round(time.Second)
	return fmt.Sprintf("valid (%s)", left)
}

func licenseStatus(tok *tokenstore.StoredToken, now time.Time) string {
	switch {
	case tok == nil:
		return "unknown account"
	case !tok.IsEnterprise():
		return "not required"
	case tok.MveloLicenseIssued == google.MonthStart(now).UnixMilli():
		return "valid this month"
	case tok.LegacyGSuite:
		return "legacy G Suite"
	default:
		return "not licensed"
	}
}
