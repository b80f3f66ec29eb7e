package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/capi-relay/cli/internal/client"
	"github.com/telhawk-systems/capi-relay/cli/internal/seeder"
	"github.com/telhawk-systems/capi-relay/cli/pkg/output"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate fake upstream webhooks",
	Long: `Generate realistic fake webhook payloads and post them to the relay.

Settings cascade: flags > --settings file > ./simulate.yaml >
~/.capictl/simulate.yaml > defaults. SIMULATE_* environment variables
override file values.`,
	Example: `  capictl simulate --count 50 --events USER_CREATED,DEPOSIT_CREATED --interval 100ms
  capictl simulate --count 10 --seed 7 --verbose`,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	settings, _ := cmd.Flags().GetString("settings")
	simCfg, err := seeder.LoadConfig(settings)
	if err != nil {
		return err
	}
	applySimulateFlags(cmd, simCfg)
	if err := simCfg.Validate(); err != nil {
		return err
	}

	target := relayURL(cmd)
	runner := seeder.NewRunner(simCfg, client.NewRelayClient(target))

	verbose, _ := cmd.Flags().GetBool("verbose")
	if format == output.FormatTable {
		output.Info("Simulating %d webhooks against %s (events: %v, interval: %s)",
			simCfg.Count, target, simCfg.EventTypes, simCfg.Interval)
		if verbose {
			runner.OnResult = printSimulateResult
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := runner.Run(ctx)

	if format == output.FormatJSON {
		if err := output.JSON(summary); err != nil {
			return err
		}
	} else {
		printSimulateSummary(summary)
	}

	if runErr != nil {
		return fmt.Errorf("simulation interrupted: %w", runErr)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d webhooks failed", summary.Failed, summary.Sent)
	}
	return nil
}

func applySimulateFlags(cmd *cobra.Command, c *seeder.Config) {
	flags := cmd.Flags()
	if flags.Changed("count") {
		c.Count, _ = flags.GetInt("count")
	}
	if flags.Changed("events") {
		events, _ := flags.GetString("events")
		c.EventTypes = seeder.ParseEventTypes(events)
	}
	if flags.Changed("interval") {
		c.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("seed") {
		c.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("currency") {
		c.Currency, _ = flags.GetString("currency")
	}
}

func printSimulateResult(r seeder.Result) {
	n := r.Index + 1
	switch {
	case r.Err != nil:
		output.Error("#%d %s: %v", n, r.EventType, r.Err)
	default:
		printWebhookResponse(fmt.Sprintf("#%d %s", n, r.EventType), r.Response)
	}
}

func printSimulateSummary(s seeder.Summary) {
	table := output.NewTable([]string{"EVENT", "SENT"})
	for _, t := range s.EventTypes() {
		table.AddRow([]string{t, strconv.Itoa(s.ByEvent[t])})
	}
	table.Render()

	output.Info("")
	msg := "Sent %d webhooks in %s: %d succeeded, %d ignored, %d failed"
	args := []interface{}{s.Sent, s.Duration.Round(time.Millisecond), s.Succeeded, s.Ignored, s.Failed}
	if s.Failed > 0 {
		output.Warn(msg, args...)
		return
	}
	output.Success(msg, args...)
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntP("count", "n", 10, "number of webhooks to send")
	simulateCmd.Flags().String("events", "", "comma separated event types (default: all mapped types)")
	simulateCmd.Flags().Duration("interval", 0, "pause between webhooks (default from settings: 100ms)")
	simulateCmd.Flags().Int64("seed", 0, "random seed for reproducible payloads (0 = time based)")
	simulateCmd.Flags().String("currency", "", "currency for deposit events")
	simulateCmd.Flags().String("settings", "", "simulation settings file (YAML)")
	simulateCmd.Flags().BoolP("verbose", "v", false, "print every webhook result")
}
