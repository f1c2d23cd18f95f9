package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mailtriage/internal/google"
)

func newAuthCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailtriage to read and relabel Gmail threads",
		Long: `Run the OAuth flow for an installed application. Download the client
secret of a "Desktop app" OAuth client from the Google Cloud console and store
it as the configured credentials file, then run this command, open the printed
link and paste the authorization code.

The token is written to the configured token file and refreshed automatically
afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}

			if google.HasToken(cfg.TokenFile) && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Token already present at %s (use --force to replace it)\n", cfg.TokenFile)
				return nil
			}

			conf, err := google.LoadConfig(cfg.CredentialsFile)
			if err != nil {
				return err
			}
			tok, err := google.Login(cmd.Context(), conf, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := google.SaveToken(cfg.TokenFile, tok); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", cfg.TokenFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing token")

	return cmd
}
