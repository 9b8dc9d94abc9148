// Command payloadforge ingests device-management payload documentation into
// a section hierarchy and inspects the document cache behind it.
package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"payloadforge/internal/config"
	"payloadforge/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	jsonOut   bool
	workspace string
	timeout   time.Duration
	overrides []string

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE
	appConfig     *config.Config
	settingsStore *config.Store
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "payloadforge",
	Short: "payloadforge - device-management payload section builder",
	Long: `payloadforge turns the vendor's payload documentation into a flat list of
configurable sections with parent/child relationships, resolving every
document through a memory, persisted, network and fallback cache chain.

Runtime settings live in .payloadforge/settings.json and can be overridden
per invocation with --set key=value.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			if workspace, err = config.FindWorkspaceRoot(); err != nil {
				return fmt.Errorf("failed to find workspace: %w", err)
			}
		}

		configPath := config.DefaultConfigPath(workspace)
		appConfig, err = config.Load(configPath)
		if err != nil {
			return err
		}
		appConfig.ResolvePaths(workspace)

		settingsStore = config.NewStore(config.DefaultSettingsPath(workspace))
		values, err := parseOverrides(overrides)
		if err != nil {
			return err
		}
		settingsStore.ApplyOverrides(values)

		if err := logging.Initialize(workspace, appConfig.Logging.Options(settingsStore.GetAll().DebugMode)); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		settingsStore.OnChange(func(s config.Settings) {
			logging.Configure(appConfig.Logging.Options(s.DebugMode))
		})
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			logging.BootWarn("no %s, using the default configuration", configPath)
		}
		logging.Boot("%s: workspace %s, %s backend at %s", cmd.CommandPath(), workspace,
			appConfig.Cache.Backend, appConfig.StoreLocation())

		logger.Debug("workspace ready",
			zap.String("workspace", workspace),
			zap.String("backend", appConfig.Cache.Backend),
			zap.String("source", appConfig.Source.BaseURL))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// parseOverrides turns repeated key=value flags into request overrides.
func parseOverrides(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", pair)
		}
		values.Set(strings.TrimSpace(key), value)
	}
	return values, nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "Override a runtime setting for this run (key=value)")

	// Add commands to root
	rootCmd.AddCommand(sectionsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
