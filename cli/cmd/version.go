package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/capi-relay/cli/pkg/output"
)

// Set at build time with -ldflags "-X .../cli/cmd.version=...".
var (
	version = "0.1.0"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			return output.JSON(map[string]string{
				"version":    version,
				"commit":     commit,
				"go_version": runtime.Version(),
			})
		}

		output.Info("capictl %s (commit %s, %s)", version, commit, runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
