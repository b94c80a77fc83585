package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential and sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, closer, err := openSDK(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closer()

		sdk.Session.Logout(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
