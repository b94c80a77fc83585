package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

var whoamiRemote bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in member",
	Long: `Show who the stored credential belongs to. The credential's claims are
read without verification; pass --remote to ask the service instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sdk, closer, err := openSDK(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closer()

		if !sdk.Session.IsAuthenticated() {
			return errors.New("not signed in")
		}

		out := cmd.OutOrStdout()
		if whoamiRemote {
			m, err := sdk.Gateway.Profile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "id:    %s\nemail: %s\nname:  %s %s\n", m.ID, m.Email, m.FirstName, m.LastName)
			return nil
		}

		c, err := memberauth.PeekClaims(sdk.Store.Get())
		if errors.Is(err, memberauth.ErrOpaqueCredential) {
			fmt.Fprintln(out, "signed in (opaque credential)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "id:    %s\nemail: %s\n", c.Subject, c.Email)
		if c.Name != "" {
			fmt.Fprintf(out, "name:  %s\n", c.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().BoolVar(&whoamiRemote, "remote", false, "Fetch the profile from the service")
}
