package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
)

func newGetCmd(opts *globalOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "get MESSAGE_ID",
		Short: "Get one message by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withClient(ctx, account, func(_ *config.Config, client *gmail.Client) error {
				msg, err := client.GetMessage(ctx, args[0], gmail.FormatFull)
				if err != nil {
					return err
				}
				headers := gmail.HeadersMap(msg)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "From:", headers["From"])
				fmt.Fprintln(out, "To:", headers["To"])
				fmt.Fprintln(out, "Subject:", headers["Subject"])
				fmt.Fprintln(out, "Date:", headers["Date"])
				fmt.Fprintln(out)
				fmt.Fprintln(out, gmail.ParseMessageBody(msg))
				return nil
			})
		},
	}

	addAccountFlag(cmd, &account)
	return cmd
}
