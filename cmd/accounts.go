package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with stored credentials",
		Long: `Print the account keys found in the token store, one per line. A token
file in the legacy single-account form is reported as "default".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			keys, err := newAuthenticator(cfg, logger, nil).ListAccounts()
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
