package main

import (
	"encoding/json"
	"fmt"
	"time"

	"payloadforge/internal/cache"
	"payloadforge/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cacheCmd groups persisted-tier commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persisted document cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show manifest freshness and cache diagnostics",
	Args:  cobra.NoArgs,
	RunE:  cacheStatus,
}

var cacheWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload the manifest whenever the export job replaces it",
	Long: `Watches the directory store's manifest.json and re-initializes the
resolver when it changes, printing the new manifest state. Runs until
interrupted or --timeout elapses.`,
	Args: cobra.NoArgs,
	RunE: cacheWatch,
}

var cacheImportCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Copy a directory export into the SQLite store",
	Args:  cobra.ExactArgs(1),
	RunE:  cacheImport,
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheWatchCmd)
	cacheCmd.AddCommand(cacheImportCmd)
}

func cacheStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	diag := sess.resolver.Diagnostics(ctx)
	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(diag)
	}
	fmt.Fprint(out, renderDiagnostics(appConfig.Cache.Backend, appConfig.StoreLocation(), diag))
	return nil
}

func cacheWatch(cmd *cobra.Command, args []string) error {
	if store.Backend(appConfig.Cache.Backend) != store.BackendDir {
		return fmt.Errorf("cache watch needs the dir backend (configured: %s)", appConfig.Cache.Backend)
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	reloaded := make(chan struct{}, 1)
	sess, err := openSession(cache.EventSinkFunc(func(e cache.Event) {
		if e.Kind != cache.EventReinitialized {
			return
		}
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		return err
	}
	defer sess.Close()

	w, err := sess.resolver.WatchManifest(ctx, appConfig.Cache.Dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", appConfig.Cache.Dir, err)
	}
	defer w.Stop()

	fmt.Fprintf(out, "watching %s\n", appConfig.Cache.Dir)
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", zap.Int64("reloads", w.Reloads()))
			return nil
		case <-reloaded:
			diag := sess.resolver.Diagnostics(ctx)
			fmt.Fprintf(out, "%s manifest reloaded: %d files, fresh=%v\n",
				time.Now().Format(time.TimeOnly), diag.TotalFiles, diag.Fresh)
		}
	}
}

func cacheImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	dst, err := store.NewSQLiteStore(appConfig.Cache.SQLitePath)
	if err != nil {
		return err
	}
	defer dst.Close()

	n, err := dst.Import(ctx, store.NewDirStore(args[0]))
	if err != nil {
		return fmt.Errorf("import failed after %d files: %w", n, err)
	}
	logger.Info("import complete", zap.Int("files", n), zap.String("database", dst.Path()))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d files into %s\n", n, dst.Path())
	return nil
}
