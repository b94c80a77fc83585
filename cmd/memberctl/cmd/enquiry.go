package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/enquiry"
	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

var (
	enquiryData string
	enquiryFile string
)

var enquiryCmd = &cobra.Command{
	Use:   "enquiry",
	Short: "Concierge enquiry tools",
}

var enquiryKindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the enquiry kinds and their endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range enquiry.Kinds() {
			p, _ := enquiry.Path(k)
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s /enquiries/%s\n", k, p)
		}
		return nil
	},
}

var enquirySubmitCmd = &cobra.Command{
	Use:   "submit <kind>",
	Short: "Submit an enquiry as the signed-in member",
	Long: `Submit a JSON enquiry. The payload comes from --data, or from --file
(use "-" for standard input).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := enquiryPayload(cmd.InOrStdin())
		if err != nil {
			return err
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("payload is not a JSON object: %w", err)
		}

		sdk, closer, err := openSDK(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closer()

		c := enquiry.NewClient(sdk.Gateway, cfg.APIBase)
		r, err := c.Submit(cmd.Context(), enquiry.Kind(args[0]), payload)
		if err != nil {
			var se *memberauth.StatusError
			if errors.As(err, &se) {
				return errors.New(se.Message)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "enquiry %s: %s\n", r.ID, r.Status)
		return nil
	},
}

func enquiryPayload(stdin io.Reader) ([]byte, error) {
	switch {
	case enquiryData != "":
		return []byte(enquiryData), nil
	case enquiryFile == "-":
		return io.ReadAll(stdin)
	case enquiryFile != "":
		return os.ReadFile(enquiryFile)
	default:
		return nil, errors.New("one of --data or --file is required")
	}
}

func init() {
	rootCmd.AddCommand(enquiryCmd)
	enquiryCmd.AddCommand(enquiryKindsCmd)
	enquiryCmd.AddCommand(enquirySubmitCmd)
	enquirySubmitCmd.Flags().StringVarP(&enquiryData, "data", "d", "", "JSON payload")
	enquirySubmitCmd.Flags().StringVarP(&enquiryFile, "file", "f", "", "File holding the JSON payload")
}
