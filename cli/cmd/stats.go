package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/capi-relay/cli/pkg/output"
	"github.com/telhawk-systems/capi-relay/common/deliverystats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-event delivery statistics",
	Long: `Read Conversions API delivery statistics recorded by relay instances
in Redis and print them per event name.`,
	Example: `  capictl stats
  capictl stats --event Purchase --output json
  capictl stats --redis-url redis://cache:6379/0`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	redisURL, _ := cmd.Flags().GetString("redis-url")
	if redisURL == "" {
		redisURL = activeProfile(cmd).RedisURL
	}

	stats, err := deliverystats.NewClient(redisURL, "capictl")
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer stats.Close()

	var all []*deliverystats.Stats
	if event, _ := cmd.Flags().GetString("event"); event != "" {
		s, err := stats.GetStats(cmd.Context(), event)
		if err != nil {
			return err
		}
		all = append(all, s)
	} else {
		all, err = stats.GetAllStats(cmd.Context())
		if err != nil {
			return err
		}
	}

	if format == output.FormatJSON {
		return output.JSON(all)
	}

	if len(all) == 0 {
		output.Info("No delivery statistics recorded yet")
		return nil
	}

	table := output.NewTable([]string{"EVENT", "TOTAL", "DELIVERED", "FAILED", "SUCCESS", "LAST HOUR", "24H", "TODAY", "LAST STATUS", "LAST SENT", "INSTANCES"})
	for _, s := range all {
		table.AddRow([]string{
			s.EventName,
			strconv.FormatInt(s.Total, 10),
			strconv.FormatInt(s.Delivered, 10),
			strconv.FormatInt(s.Failed, 10),
			fmt.Sprintf("%.1f%%", s.SuccessRate()*100),
			strconv.FormatInt(s.SentLastHour, 10),
			strconv.FormatInt(s.SentLast24h, 10),
			strconv.FormatInt(s.SentToday, 10),
			formatStatus(s.LastStatusCode),
			formatLastSent(s.LastSentAt),
			formatInstances(s.RelayInstances),
		})
	}
	table.Render()
	return nil
}

func formatStatus(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func formatLastSent(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatInstances(instances map[string]string) string {
	if len(instances) == 0 {
		return "-"
	}
	ids := make([]string, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("event", "", "only show this Conversions API event name")
	statsCmd.Flags().String("redis-url", "", "Redis URL (overrides the profile)")
}
