package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	statusadapter "github.com/bnema/bsky-accounts-cli/internal/adapters/render/status"
	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

// accountStatusJSON is the machine-readable status shape. Tokens stay out
// of it; the accounts file is the only place credentials are written.
type accountStatusJSON struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	Service     string `json:"service"`
	PDSURL      string `json:"pdsUrl,omitempty"`
	Email       string `json:"email,omitempty"`
	SignedIn    bool   `json:"signedIn"`
	Deactivated bool   `json:"deactivated,omitempty"`
	Current     bool   `json:"current"`
}

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored accounts and session health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state := app.manager.State()
			view := &domain.State{
				Accounts: state.Accounts,
				Current:  domain.CurrentAgentState{DID: app.storedCurrentDID},
			}

			if asJSON {
				statuses := make([]accountStatusJSON, 0, len(state.Accounts))
				for _, account := range state.Accounts {
					statuses = append(statuses, accountStatusJSON{
						DID:         string(account.DID),
						Handle:      account.Handle,
						Service:     account.Service,
						PDSURL:      account.PDSURL,
						Email:       account.Email,
						SignedIn:    account.SignedIn(),
						Deactivated: account.Deactivated,
						Current:     account.DID == app.storedCurrentDID,
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statuses)
			}

			rendered, err := app.statusRenderer(view, statusadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")

	return cmd
}
