package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

func newSwitchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <handle|did>",
		Short: "Make a stored account the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := findStoredAccount(app.manager.State(), args[0])
			if err != nil {
				return err
			}
			if !stored.SignedIn() {
				return fmt.Errorf("%s is signed out; run `bsky login --identifier %s` first", stored.Handle, stored.Handle)
			}

			var (
				client  ports.ProtocolClient
				account domain.Account
			)
			err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Resuming session...", func(ctx context.Context) error {
				var resumeErr error
				client, account, resumeErr = app.agents.Resume(ctx, stored, app.manager.HandleSessionChange)
				return resumeErr
			})
			if err != nil {
				return err
			}

			app.manager.Dispatch(domain.SwitchedToAccount{NewAgent: client, NewAccount: account})

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s (%s)\n", account.Handle, account.DID)
			return nil
		},
	}
}

// findStoredAccount resolves a handle or DID against the stored accounts.
func findStoredAccount(state *domain.State, key string) (domain.Account, error) {
	key = strings.TrimSpace(key)
	for _, account := range state.Accounts {
		if string(account.DID) == key || strings.EqualFold(account.Handle, key) {
			return account, nil
		}
	}

	return domain.Account{}, fmt.Errorf("no stored account matches %q: %w", key, domain.ErrAccountNotFound)
}
