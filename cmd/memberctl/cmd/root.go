package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/internal/config"
	"github.com/alexlup06-authgate/memberauth-go/internal/observability"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "memberctl",
	Short: "memberctl manages a member session against the authentication service",
	Long: `Sign in, register, inspect the current session and submit concierge
enquiries from the command line, or serve a local member portal.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		observability.InitLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "memberctl.yaml", "Path to the YAML config file")
}
