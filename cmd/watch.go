package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	syncadapter "github.com/bnema/bsky-accounts-cli/internal/adapters/sync"
	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

func newWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the accounts file and mirror changes from other instances",
		Long:  "Keeps this process's session state in sync with the shared accounts file. When another instance switches accounts or refreshes tokens, the change is mirrored here, resuming the newly active session when possible.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Bring the persisted current session live before mirroring.
			if stored, ok := app.manager.State().AccountByDID(app.storedCurrentDID); ok && stored.SignedIn() {
				client, account, err := app.agents.Resume(ctx, stored, app.manager.HandleSessionChange)
				if err != nil {
					app.log.Warn().Err(err).Str("did", string(stored.DID)).Msg("initial session resume failed")
				} else {
					app.manager.Dispatch(domain.SwitchedToAccount{NewAgent: client, NewAccount: account})
				}
			}

			app.manager.Subscribe(func(state *domain.State) {
				current := "none"
				if account, ok := state.CurrentAccount(); ok {
					current = fmt.Sprintf("%s (%s)", account.Handle, account.DID)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "accounts: %d, active: %s\n", len(state.Accounts), current)
			})

			watcher := syncadapter.NewWatcher(app.repo, app.repo.Path(), func(accounts []domain.Account, currentDID domain.DID) {
				target, shouldResume := app.manager.ApplySyncedSnapshot(accounts, currentDID)
				if !shouldResume {
					return
				}

				client, account, err := app.agents.Resume(ctx, target, app.manager.HandleSessionChange)
				if err != nil {
					app.log.Warn().Err(err).Str("did", string(target.DID)).Msg("resume synced account failed")
					return
				}
				app.manager.Dispatch(domain.SwitchedToAccount{NewAgent: client, NewAccount: account})
			}, app.log)

			if err := watcher.Start(ctx); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", app.repo.Path())
			<-ctx.Done()
			return nil
		},
	}
}
