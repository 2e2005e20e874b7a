package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
)

func newSendCmd(opts *globalOptions) *cobra.Command {
	var (
		to       string
		subject  string
		body     string
		bodyFile string
		cc       string
		bcc      string
		account  string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an email",
		Long: `Send a plain text email from the authenticated account.

Example:
  mcp-gmail send --to "bob@example.com" --subject "Hi" --body "Hello"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("failed to read body file: %w", err)
				}
				body = string(data)
			}

			ctx := cmd.Context()
			return opts.withClient(ctx, account, func(_ *config.Config, client *gmail.Client) error {
				if _, err := client.SendEmail(ctx, gmail.OutgoingMessage{
					To:      to,
					Cc:      cc,
					Bcc:     bcc,
					Subject: subject,
					Body:    body,
				}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "sent")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "Recipient")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject")
	cmd.Flags().StringVarP(&body, "body", "b", "", "Body text")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read body from file (overrides --body)")
	cmd.Flags().StringVar(&cc, "cc", "", "CC recipients")
	cmd.Flags().StringVar(&bcc, "bcc", "", "BCC recipients")
	addAccountFlag(cmd, &account)

	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
