package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

var statusCmd = &cobra.Command{
	Use:   "status [location]",
	Short: "Show what the route guard decides for a protected location",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := "/member"
		if len(args) == 1 {
			location = args[0]
		}

		sdk, closer, err := openSDK(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closer()

		ctx := cmd.Context()
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}

		m := sdk.Guard.Mount(ctx, location)
		defer m.Unmount()
		m.Wait(ctx)

		d := m.Decision()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "state: %s\n", d.State)
		if d.State == memberauth.GuardGuest {
			fmt.Fprintf(out, "redirect: %s\n", d.Redirect)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
