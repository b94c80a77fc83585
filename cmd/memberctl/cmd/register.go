package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

var (
	registerEmail     string
	registerPassword  string
	registerFirstName string
	registerLastName  string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFrom(cmd.InOrStdin(), registerPassword)
		if err != nil {
			return err
		}

		sdk, closer, err := openSDK(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closer()

		err = sdk.Session.RegisterAndLogin(cmd.Context(), memberauth.Profile{
			Identifier: registerEmail,
			Secret:     password,
			FirstName:  registerFirstName,
			LastName:   registerLastName,
		})
		if err != nil {
			printFieldErrors(cmd, err)
			return errors.New(memberauth.DisplayMessage(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", registerEmail)
		return nil
	},
}

func printFieldErrors(cmd *cobra.Command, err error) {
	var ae *memberauth.AuthError
	if errors.Is(err, memberauth.ErrAutoLoginFailed) || !errors.As(err, &ae) {
		return
	}

	fields := ae.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", name, fields[name])
	}
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Member email")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Password (read from stdin when omitted)")
	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "Last name")
	_ = registerCmd.MarkFlagRequired("email")
}
