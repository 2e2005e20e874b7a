package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mcp-gmail/internal/tokenstore"
)

func newAuthCmd(opts *globalOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize an account in the browser",
		Long: `Run the interactive OAuth flow for an account and store the resulting token,
replacing any token already stored for it. Use this when a refresh token has
expired or been revoked, or to add another account:

  mcp-gmail auth --account work`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			auth := newAuthenticator(cfg, logger, nil)
			if _, err := auth.Authorize(cmd.Context(), account); err != nil {
				return err
			}

			name := account
			if name == "" {
				name = tokenstore.DefaultAccount
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "authorized account %s (%s)\n", name, auth.TokenPathForAccount(account))
			return nil
		},
	}

	addAccountFlag(cmd, &account)
	return cmd
}
