package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/capi-relay/cli/internal/client"
	"github.com/telhawk-systems/capi-relay/cli/pkg/output"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one webhook to the relay",
	Long: `Send a single upstream webhook payload to the relay's /webhook endpoint
and print the relay's reply.

The payload is built from --file or --json (if given) and then overlaid
with any field flags.`,
	Example: `  capictl send --event USER_CREATED --email a@b.com --name Ana --surname Silva
  capictl send --event DEPOSIT_PAID --user-id u1 --amount 50 --deposit-id d1
  capictl send --json '{"event":"USER_LOGIN","email":"a@b.com"}'
  capictl send --file fixtures/deposit.yaml --amount 75.5`,
	RunE: runSend,
}

// Flags copied verbatim into the payload when set.
var sendStringFields = []struct {
	flag  string
	field string
	usage string
}{
	{"event", "event", "event type (USER_CREATED, USER_LOGIN, DEPOSIT_CREATED, DEPOSIT_PAID)"},
	{"event-id", "event_id", "deduplication id"},
	{"email", "email", "user email"},
	{"phone", "phone", "user phone"},
	{"name", "name", "first name"},
	{"surname", "surname", "last name"},
	{"user-id", "user_id", "upstream user id"},
	{"deposit-id", "deposit_id", "deposit id"},
	{"currency", "currency", "ISO 4217 currency code"},
	{"ip", "ip", "client IP address"},
	{"user-agent", "browser", "client user agent"},
	{"page-url", "page_url", "page URL the event happened on"},
}

func runSend(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	payload, err := buildSendPayload(cmd)
	if err != nil {
		return err
	}

	resp, err := client.NewRelayClient(relayURL(cmd)).SendWebhook(cmd.Context(), payload)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	if format == output.FormatJSON {
		if err := output.JSON(map[string]interface{}{
			"status_code": resp.StatusCode,
			"response":    resp,
		}); err != nil {
			return err
		}
	} else {
		printWebhookResponse(payload["event"], resp)
	}

	if !resp.OK() {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}

func printWebhookResponse(event interface{}, resp *client.WebhookResponse) {
	switch {
	case !resp.OK():
		output.Error("%v: %d %s", event, resp.StatusCode, resp.Summary())
	case resp.Status == "ignored":
		output.Warn("%v: %s", event, resp.Summary())
	default:
		output.Success("%v: %s", event, resp.Summary())
	}
}

func buildSendPayload(cmd *cobra.Command) (map[string]interface{}, error) {
	file, _ := cmd.Flags().GetString("file")
	raw, _ := cmd.Flags().GetString("json")
	if file != "" && raw != "" {
		return nil, errors.New("--file and --json are mutually exclusive")
	}

	payload := map[string]interface{}{}
	var err error
	switch {
	case file != "":
		payload, err = loadPayloadFile(file)
	case raw != "":
		payload, err = decodeJSONPayload([]byte(raw))
	}
	if err != nil {
		return nil, err
	}

	for _, f := range sendStringFields {
		if cmd.Flags().Changed(f.flag) {
			v, _ := cmd.Flags().GetString(f.flag)
			payload[f.field] = v
		}
	}
	if cmd.Flags().Changed("amount") {
		amount, _ := cmd.Flags().GetFloat64("amount")
		payload["amount"] = amount
	}

	if len(payload) == 0 {
		return nil, errors.New("either --event, --json or --file is required")
	}
	return payload, nil
}

// loadPayloadFile reads a JSON or YAML payload, chosen by extension.
func loadPayloadFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeJSONPayload(data)
	case ".yaml", ".yml":
		var payload map[string]interface{}
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if payload == nil {
			return nil, fmt.Errorf("%s: payload must be a mapping", path)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported payload file type %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}
}

func decodeJSONPayload(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if payload == nil {
		return nil, errors.New("JSON payload must be an object")
	}
	return payload, nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	for _, f := range sendStringFields {
		sendCmd.Flags().String(f.flag, "", f.usage)
	}
	sendCmd.Flags().Float64("amount", 0, "deposit amount")
	sendCmd.Flags().String("json", "", "raw JSON payload")
	sendCmd.Flags().StringP("file", "f", "", "payload file (.json, .yaml, .yml)")
}
