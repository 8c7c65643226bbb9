package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bsky",
		Short:         "Bluesky accounts CLI: manage sessions across multiple accounts",
		Long:          "bsky stores sessions for multiple Bluesky accounts, keeps their tokens fresh, and switches the active account from the terminal. Other running instances pick up changes through the shared accounts file.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newCreateAccountCmd(app),
		newSwitchCmd(app),
		newLogoutCmd(app),
		newAccountCmd(app),
		newStatusCmd(app),
		newWatchCmd(app),
	)

	return rootCmd
}
