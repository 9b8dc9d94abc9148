package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"payloadforge/internal/cache"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resolveSection bool
	resolveRefresh bool
)

// resolveCmd resolves a single document through the tier chain
var resolveCmd = &cobra.Command{
	Use:   "resolve [name]",
	Short: "Resolve one document through the cache tiers",
	Long: `Resolves a logical document name (for example "wifi" or
"profile-specific-payload-keys") and prints its JSON body. With --section the
name is treated as a section identifier and normalized first.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveSection, "section", false, "Treat the argument as a section identifier")
	resolveCmd.Flags().BoolVar(&resolveRefresh, "refresh", false, "Bypass the memory tier")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	var opts []cache.ResolveOption
	if resolveRefresh {
		opts = append(opts, cache.WithForceRefresh())
	}

	var doc *cache.Document
	if resolveSection {
		doc, err = sess.resolver.ResolveSection(ctx, args[0], opts...)
	} else {
		doc, err = sess.resolver.Resolve(ctx, args[0], opts...)
	}
	if err != nil {
		return err
	}
	logger.Info("resolved document",
		zap.String("name", doc.Name),
		zap.Stringer("tier", doc.Tier),
		zap.Int("bytes", len(doc.Body)))

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc.Body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(doc.Body)
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
