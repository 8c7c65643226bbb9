package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage stored accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountRemoveCmd(app),
	)

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts, most recently used first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state := app.manager.State()
			for _, account := range state.Accounts {
				marker := " "
				if account.DID == app.storedCurrentDID {
					marker = "*"
				}
				session := "signed out"
				switch {
				case account.Deactivated:
					session = "deactivated"
				case account.SignedIn():
					session = "signed in"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\n", marker, account.Handle, account.DID, session)
			}

			return nil
		},
	}
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <handle|did>",
		Short: "Forget a stored account entirely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.adoptStoredSession()

			account, err := findStoredAccount(app.manager.State(), args[0])
			if err != nil {
				return err
			}

			app.manager.Dispatch(domain.RemovedAccount{DID: account.DID})

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", account.Handle, account.DID)
			return nil
		},
	}
}
