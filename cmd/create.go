package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/bsky-accounts-cli/internal/application"
	"github.com/bnema/bsky-accounts-cli/internal/domain"
	"github.com/bnema/bsky-accounts-cli/internal/ports"
)

func newCreateAccountCmd(app *app) *cobra.Command {
	var (
		params    application.CreateAccountParams
		birthDate string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new account and sign in to it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if params.Email == "" || params.Handle == "" || params.Password == "" {
				return errors.New("--email, --handle and --password are required")
			}
			if birthDate != "" {
				parsed, err := time.Parse("2006-01-02", birthDate)
				if err != nil {
					return fmt.Errorf("parse --birth-date: %w", err)
				}
				params.BirthDate = parsed
			}

			var (
				client  ports.ProtocolClient
				account domain.Account
			)
			err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Creating account...", func(ctx context.Context) error {
				var createErr error
				client, account, createErr = app.agents.CreateAccount(ctx, params, app.manager.HandleSessionChange)
				return createErr
			})
			if err != nil {
				return err
			}

			app.manager.Dispatch(domain.SwitchedToAccount{NewAgent: client, NewAccount: account})

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", account.Handle, account.DID)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Service, "service", defaultService, "Service URL to create the account on")
	cmd.Flags().StringVar(&params.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&params.Handle, "handle", "", "Requested handle")
	cmd.Flags().StringVar(&params.Password, "password", "", "Password")
	cmd.Flags().StringVar(&params.InviteCode, "invite-code", "", "Invite code, when the service requires one")
	cmd.Flags().StringVar(&birthDate, "birth-date", "", "Birth date as YYYY-MM-DD")
	cmd.Flags().StringVar(&params.VerificationPhone, "verification-phone", "", "Phone number for verification")
	cmd.Flags().StringVar(&params.VerificationCode, "verification-code", "", "Phone verification code")

	return cmd
}
