package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
)

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		query         string
		maxResults    int64
		pageToken     string
		showNextToken bool
		account       string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List or search messages using Gmail query syntax",
		Long: `List messages matching a Gmail search query. Each result is printed on one
line as id, sender and subject separated by tabs.

Example:
  mcp-gmail search --query "from:alice@example.com" --max 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxResults < 0 {
				return fmt.Errorf("--max must be positive, got %d", maxResults)
			}
			ctx := cmd.Context()
			return opts.withClient(ctx, account, func(cfg *config.Config, client *gmail.Client) error {
				if maxResults == 0 {
					maxResults = cfg.MaxResults
				}
				messages, next, err := client.ListMessages(ctx, query, maxResults, pageToken)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, m := range messages {
					msg, err := client.GetMessage(ctx, m.Id, gmail.FormatMetadata)
					if err != nil {
						return err
					}
					headers := gmail.HeadersMap(msg)
					fmt.Fprintf(out, "id:%s\tfrom:%s\tsubject:%s\n", m.Id, headers["From"], headers["Subject"])
				}
				if next != "" && showNextToken {
					fmt.Fprintf(cmd.ErrOrStderr(), "next_page_token: %s\n", next)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Gmail search query")
	cmd.Flags().Int64VarP(&maxResults, "max", "n", 0, "Max results (default max_results from the configuration)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from previous response")
	cmd.Flags().BoolVar(&showNextToken, "show-next-token", false, "Print next_page_token to stderr")
	addAccountFlag(cmd, &account)
	return cmd
}

// addAccountFlag registers -a/--account. An empty value selects the default
// account.
func addAccountFlag(cmd *cobra.Command, account *string) {
	cmd.Flags().StringVarP(account, "account", "a", "", "Account key from the token file (default account if omitted)")
}
