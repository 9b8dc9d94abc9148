package main

import (
	"encoding/json"
	"fmt"

	"payloadforge/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sectionsRefresh  bool
	sectionsNoParams bool
)

// sectionsCmd builds and prints the section hierarchy
var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Build the section hierarchy from the main specification",
	Long: `Resolves the main specification, builds the section hierarchy from its
topics, merges the known-missing catalogue and resolves each section's
parameters.`,
	Args: cobra.NoArgs,
	RunE: runSections,
}

func init() {
	sectionsCmd.Flags().BoolVar(&sectionsRefresh, "refresh", false, "Bypass the memory tier")
	sectionsCmd.Flags().BoolVar(&sectionsNoParams, "no-params", false, "Skip resolving section parameters")
}

func runSections(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	p, err := pipeline.New(sess.resolver, pipeline.OptionsFromConfig(appConfig))
	if err != nil {
		return err
	}

	var opts []pipeline.RunOption
	if sectionsRefresh {
		opts = append(opts, pipeline.WithForceRefresh())
	}
	if sectionsNoParams {
		opts = append(opts, pipeline.WithoutParameters())
	}

	res, err := p.Run(ctx, opts...)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	logger.Info("pipeline run complete",
		zap.String("run", res.RunID.String()),
		zap.Int("sections", len(res.Sections)),
		zap.Stringer("main_spec_tier", res.MainSpecTier),
		zap.Bool("refresh_advised", res.RefreshAdvised),
		zap.Duration("duration", res.Duration))

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprint(out, renderSections(res))
	return nil
}
