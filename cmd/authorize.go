package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAuthorizeCmd(opts *rootOptions) *cobra.Command {
	var (
		scopes       string
		legacyGsuite bool
	)

	cmd := &cobra.Command{
		Use:   "authorize <email>",
		Short: "Authorize a Gmail account in the browser",
		Long: `Open the Google consent page for the account, wait for the redirect to the
local callback listener and store the resulting tokens. Workspace accounts are
license checked right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				email := args[0]
				if _, err := a.authorizer.Authorize(ctx, email, legacyGsuite, resolveScopes(scopes)); err != nil {
					return fmt.Errorf("authorization failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Authorized %s\n", email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scopes, "scopes", "", "Comma separated scopes, short names like gmail.send are expanded (default: gmail.readonly,gmail.send)")
	cmd.Flags().BoolVar(&legacyGsuite, "legacy-gsuite", false, "Treat a failed license check as a legacy G Suite account instead of an error")
	return cmd
}

func newDeauthorizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deauthorize <email>",
		Short: "Revoke and forget the tokens of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.authorizer.Deauthorize(ctx, args[0]); err != nil {
					return fmt.Errorf("deauthorization failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var scopes string

	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Print a valid access token, refreshing it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tok, err := a.accessToken(ctx, args[0], resolveScopes(scopes))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scopes, "scopes", "", "Comma separated scopes the token must cover")
	return cmd
}

func newLicenseCmd(opts *rootOptions) *cobra.Command {
	var legacyGsuite bool

	cmd := &cobra.Command{
		Use:   "license <email>",
		Short: "Run the monthly Workspace license check for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				email := args[0]
				if err := a.license.Check(ctx, email, legacyGsuite); err != nil {
					return err
				}
				tok, err := a.store.Get(ctx, email)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), licenseStatus(tok, time.Now()))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&legacyGsuite, "legacy-gsuite", false, "Treat a failed check as a legacy G Suite account instead of an error")
	return cmd
}
