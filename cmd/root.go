package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	debug       bool
	metricsAddr string
}

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI and the telemetry resource.
func SetVersion(v string) {
	version = v
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mvgmail",
		Short: "Gmail OAuth, mail and license helper for encrypted mail clients",
		Long: `mvgmail authorizes Gmail accounts through the browser, keeps their OAuth
tokens, reads encrypted and signed message bodies and attachments, sends
mail and runs the monthly Google Workspace license check.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate(`{{printf "mvgmail version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: mvgmail.yaml in the working directory or user config dir)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	cmd.AddCommand(
		newAuthorizeCmd(opts),
		newDeauthorizeCmd(opts),
		newTokenCmd(opts),
		newAccountsCmd(opts),
		newLicenseCmd(opts),
		newMessageCmd(opts),
		newAttachmentCmd(opts),
		newSendCmd(opts),
		newKeyCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

// withApp builds the app for one command run and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, run func(context.Context, *app) error) (err error) {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return run(ctx, a)
}
