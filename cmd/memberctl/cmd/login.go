package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access credential",
	Long: `Sign in with email and password. When --password is omitted the
password is read from the first line of standard input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFrom(cmd.InOrStdin(), loginPassword)
		if err != nil {
			return err
		}

		sdk, closer, err := openSDK(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closer()

		if err := sdk.Session.Login(cmd.Context(), loginEmail, password); err != nil {
			return errors.New(memberauth.DisplayMessage(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", displayName(sdk.Store.Get(), loginEmail))
		return nil
	},
}

// passwordFrom returns flagValue, or the first line of r when it is empty.
func passwordFrom(r io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func displayName(cred, fallback string) string {
	c, err := memberauth.PeekClaims(cred)
	if err != nil || c.Email == "" {
		return fallback
	}
	return c.Email
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Member email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Member password (read from stdin when omitted)")
	_ = loginCmd.MarkFlagRequired("email")
}
