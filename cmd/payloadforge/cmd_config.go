package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"payloadforge/internal/config"

	"github.com/spf13/cobra"
)

var configSessionOnly bool

// configCmd groups runtime settings commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change runtime settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  configGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting and persist it",
	Long: `Changes a runtime setting. Booleans accept true/false/1/0/yes/no/on/off;
numeric settings must be positive integers. Invalid values are rejected and
the previous value is kept.`,
	Args: cobra.ExactArgs(2),
	RunE: configSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE:  configList,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore defaults and remove persisted settings",
	Args:  cobra.NoArgs,
	RunE:  configReset,
}

func init() {
	configSetCmd.Flags().BoolVar(&configSessionOnly, "session", false, "Do not persist the change")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configResetCmd)
}

func configGet(cmd *cobra.Command, args []string) error {
	v, ok := settingsStore.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %v)", args[0], config.Keys)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func configSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !slices.Contains(config.Keys, key) {
		return fmt.Errorf("unknown setting %q (valid: %v)", key, config.Keys)
	}
	if !settingsStore.Set(key, value, !configSessionOnly) {
		prev, _ := settingsStore.Get(key)
		return fmt.Errorf("rejected value %q for %s (kept %v)", value, key, prev)
	}
	v, _ := settingsStore.Get(key)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, v)
	return nil
}

func configList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(settingsStore.GetAll())
	}

	persisted := settingsStore.Persisted()
	for _, key := range config.Keys {
		v, _ := settingsStore.Get(key)
		marker := ""
		if slices.Contains(persisted, key) {
			marker = dimStyle.Render("  (persisted)")
		}
		fmt.Fprintf(out, "%-18s %v%s\n", key, v, marker)
	}
	return nil
}

func configReset(cmd *cobra.Command, args []string) error {
	settingsStore.Reset()
	fmt.Fprintln(cmd.OutOrStdout(), "settings reset to defaults")
	return nil
}
