package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/bsky-accounts-cli/internal/application"
	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

func newLoginCmd(app *app) *cobra.Command {
	var params application.LoginParams

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to an account and make it the active one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if params.Identifier == "" || params.Password == "" {
				return errors.New("--identifier and --password are required")
			}

			var (
				client  ports.ProtocolClient
				account domain.Account
			)
			err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Signing in...", func(ctx context.Context) error {
				var loginErr error
				client, account, loginErr = app.agents.Login(ctx, params, app.manager.HandleSessionChange)
				return loginErr
			})
			if err != nil {
				return err
			}

			app.manager.Dispatch(domain.SwitchedToAccount{NewAgent: client, NewAccount: account})

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", account.Handle, account.DID)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Service, "service", defaultService, "Service URL to authenticate against")
	cmd.Flags().StringVar(&params.Identifier, "identifier", "", "Handle, DID or email")
	cmd.Flags().StringVar(&params.Password, "password", "", "Account or app password")
	cmd.Flags().StringVar(&params.AuthFactorToken, "auth-factor-token", "", "Email second-factor code, when required")

	return cmd
}
