package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/capi-relay/cli/internal/config"
	"github.com/telhawk-systems/capi-relay/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
	Long:  "Store relay and Redis endpoints under named profiles in the capictl config file",
}

var profileSetCmd = &cobra.Command{
	Use:     "set NAME",
	Short:   "Create or update a profile and make it current",
	Example: `  capictl profile set staging --relay-url https://relay.staging.example.com --redis-url redis://cache:6379/0`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		relay, _ := cmd.Flags().GetString("relay-url")
		redisURL, _ := cmd.Flags().GetString("redis-url")

		if existing, err := cfg.GetProfile(args[0]); err == nil {
			if relay == "" {
				relay = existing.RelayURL
			}
			if redisURL == "" {
				redisURL = existing.RedisURL
			}
		}

		if err := cfg.SaveProfile(args[0], relay, redisURL); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Profile '%s' saved to %s", args[0], cfg.Path())
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use NAME",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.GetProfile(args[0]); err != nil {
			return err
		}
		cfg.CurrentProfile = args[0]
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		output.Success("Now using profile '%s'", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Profile '%s' removed", args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		if format == output.FormatJSON {
			resolved := make(map[string]config.Profile, len(names))
			for _, name := range names {
				resolved[name] = cfg.Resolve(name)
			}
			return output.JSON(map[string]interface{}{
				"current_profile": cfg.CurrentProfile,
				"profiles":        resolved,
			})
		}

		if len(names) == 0 {
			output.Info("No profiles configured; using %s and %s", config.DefaultRelayURL, config.DefaultRedisURL)
			return nil
		}

		table := output.NewTable([]string{"", "NAME", "RELAY URL", "REDIS URL"})
		for _, name := range names {
			marker := ""
			if name == cfg.CurrentProfile {
				marker = "*"
			}
			p := cfg.Resolve(name)
			table.AddRow([]string{marker, name, p.RelayURL, p.RedisURL})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileUseCmd, profileRemoveCmd, profileListCmd)

	profileSetCmd.Flags().String("redis-url", "", "Redis URL for delivery statistics")
}
