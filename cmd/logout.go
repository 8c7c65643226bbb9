package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of every account",
		Long:  "Sign out of every account. Stored handles stay in the list so a later login can reuse them, but all tokens are discarded.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.manager.Dispatch(domain.LoggedOut{})

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out of all accounts")
			return nil
		},
	}
}
