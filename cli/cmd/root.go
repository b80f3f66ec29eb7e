package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/capi-relay/cli/internal/config"
	"github.com/telhawk-systems/capi-relay/cli/pkg/output"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "capictl",
	Short: "Conversions API relay CLI",
	Long: `capictl is the command-line companion for the Conversions API relay.

Send test webhooks, simulate upstream traffic, and inspect per-event
delivery statistics from your terminal.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		output.Error("%v", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.capictl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().String("relay-url", "", "relay base URL (overrides the profile)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// activeProfile resolves --profile against the loaded config.
func activeProfile(cmd *cobra.Command) config.Profile {
	if cfg == nil {
		cfg = config.Default()
	}
	name, _ := cmd.Flags().GetString("profile")
	return cfg.Resolve(name)
}

func relayURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("relay-url"); u != "" {
		return u
	}
	return activeProfile(cmd).RelayURL
}

func outputFormat(cmd *cobra.Command) (output.Format, error) {
	f, _ := cmd.Flags().GetString("output")
	return output.ParseFormat(f)
}
