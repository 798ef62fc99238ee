package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shiftledger-dev/shiftledger/pkg/ledger"
	"github.com/shiftledger-dev/shiftledger/pkg/sdk"
)

var (
	dataDir  string
	keyFlags []string
	payload  string
	client   ledger.Ledger
)

var rootCmd = &cobra.Command{
	Use:   "shiftledger",
	Short: "CLI for the Shiftledger shift-record store",
	Long: `shiftledger submits and inspects shift records section by section.

It talks to a remote daemon when SHIFTLEDGER_ADDR is set and otherwise runs
the embedded engine against a local data directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		client, err = sdk.New(dataDir)
		return err
	},
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the registered record kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := client.Kinds()
		if err != nil {
			return err
		}
		return printJSON(kinds)
	},
}

var sectionsCmd = &cobra.Command{
	Use:   "sections [kind]",
	Short: "List the sections of a record kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sections, err := client.Sections(args[0])
		if err != nil {
			return err
		}
		return printJSON(sections)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [kind] [section]",
	Short: "Submit one section of a shift record",
	Long: `Submits one sub-form worth of data. Key fields identify the record;
the payload is the section's partial field tree as JSON.

Example:
  shiftledger submit sand_testing_note clay_parameters \
    --key date=2024-03-01 --key "shift=Shift 1" \
    --payload '{"total_clay": 9.8, "active_clay": 7.1}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tree map[string]any
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &tree); err != nil {
				return fmt.Errorf("invalid payload json: %w", err)
			}
		}
		res, err := client.SubmitSection(args[0], args[1], parseKeyFlags(), tree)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [kind]",
	Short: "Fetch a record with its lock state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.GetRecord(args[0], parseKeyFlags())
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var locksCmd = &cobra.Command{
	Use:   "locks [kind]",
	Short: "Show which fields of a record are still editable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := client.GetRecord(args[0], parseKeyFlags())
		if err != nil {
			return err
		}
		return printJSON(res.Locks)
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys [kind]",
	Short: "List the natural keys with stored records for a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := client.ListKeys(args[0])
		if err != nil {
			return err
		}
		return printJSON(keys)
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to a remote daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ok := client.(*sdk.Client)
		if !ok {
			fmt.Println("embedded mode (no daemon configured)")
			return nil
		}
		if err := c.Ping(); err != nil {
			return err
		}
		fmt.Println("PONG")
		return nil
	},
}

// parseKeyFlags turns repeated --key name=value flags into the raw key-field
// map the engine resolves.
func parseKeyFlags() map[string]string {
	fields := make(map[string]string)
	for _, kv := range keyFlags {
		name, value, _ := strings.Cut(kv, "=")
		fields[name] = value
	}
	return fields
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "data directory for embedded mode")

	for _, cmd := range []*cobra.Command{submitCmd, getCmd, locksCmd} {
		cmd.Flags().StringArrayVar(&keyFlags, "key", nil, "natural key field as name=value (repeatable)")
	}
	submitCmd.Flags().StringVar(&payload, "payload", "", "section payload as JSON")

	rootCmd.AddCommand(kindsCmd, sectionsCmd, submitCmd, getCmd, locksCmd, keysCmd, pingCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
