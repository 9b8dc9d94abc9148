// Package pipeline runs the ingest flow: resolve the main specification,
// build the section hierarchy from it, then resolve every section's own
// document for its parameters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payloadforge/internal/cache"
	"payloadforge/internal/config"
	"payloadforge/internal/logging"
	"payloadforge/internal/sections"
	"payloadforge/internal/store"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/sync/errgroup"
)

// Resolver is the part of *cache.Resolver the pipeline uses.
type Resolver interface {
	Resolve(ctx context.Context, name string, opts ...cache.ResolveOption) (*cache.Document, error)
	ResolveSection(ctx context.Context, identifier string, opts ...cache.ResolveOption) (*cache.Document, error)
	Manifest(ctx context.Context) (*store.Manifest, error)
	Diagnostics(ctx context.Context) cache.Diagnostics
}

// Options configures a Pipeline.
type Options struct {
	MainSpec       string
	TopicsPath     string
	PlatformsPath  string
	ParametersPath string
	Concurrency    int

	// Catalog overrides the embedded known-missing catalogue when non-nil.
	Catalog     []sections.CatalogEntry
	SkipCatalog bool

	Now func() time.Time
}

// OptionsFromConfig maps the application config onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MainSpec:       cfg.Source.MainSpec,
		TopicsPath:     cfg.Source.TopicsPath,
		PlatformsPath:  cfg.Source.PlatformsPath,
		ParametersPath: cfg.Source.ParametersPath,
		Concurrency:    cfg.Pipeline.Concurrency,
	}
}

// Pipeline is safe for concurrent Runs.
type Pipeline struct {
	resolver  Resolver
	opts      Options
	topics    jp.Expr
	platforms jp.Expr
	params    jp.Expr
}

// New compiles the JSONPath expressions in opts.
func New(r Resolver, opts Options) (*Pipeline, error) {
	if opts.MainSpec == "" {
		return nil, errors.New("main specification name is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Pipeline{resolver: r, opts: opts}
	var err error
	if p.topics, err = parsePath("topics", opts.TopicsPath, "$.topicSections"); err != nil {
		return nil, err
	}
	if p.platforms, err = parsePath("platforms", opts.PlatformsPath, "$.metadata.platforms[*].name"); err != nil {
		return nil, err
	}
	if p.params, err = parsePath("parameters", opts.ParametersPath, "$.parameters"); err != nil {
		return nil, err
	}
	return p, nil
}

func parsePath(what, expr, def string) (jp.Expr, error) {
	if expr == "" {
		expr = def
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s jsonpath '%s': %w", what, expr, err)
	}
	return x, nil
}

// Result is what the UI layer consumes.
type Result struct {
	RunID            uuid.UUID          `json:"runId"`
	Sections         []sections.Section `json:"sections"`
	Platforms        []string           `json:"platforms"`
	MainSpecTier     cache.Tier         `json:"mainSpecTier"`
	RefreshAdvised   bool               `json:"refreshAdvised"`
	FallbackSections int                `json:"fallbackSections"`
	Diagnostics      cache.Diagnostics  `json:"diagnostics"`
	Duration         time.Duration      `json:"duration"`
}

// RunOption adjusts one Run.
type RunOption func(*runOptions)

type runOptions struct {
	forceRefresh   bool
	skipParameters bool
}

// WithForceRefresh bypasses the memory tier for every resolution in the run.
func WithForceRefresh() RunOption {
	return func(o *runOptions) { o.forceRefresh = true }
}

// WithoutParameters stops after building the hierarchy.
func WithoutParameters() RunOption {
	return func(o *runOptions) { o.skipParameters = true }
}

// Run executes one ingest pass. It fails only when the main
// specification's topics are not an array (sections.ErrInvalidSpecStructure)
// or ctx ends.
func (p *Pipeline) Run(ctx context.Context, opts ...RunOption) (*Result, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	var resolveOpts []cache.ResolveOption
	if ro.forceRefresh {
		resolveOpts = append(resolveOpts, cache.WithForceRefresh())
	}

	start := p.opts.Now()
	res := &Result{RunID: uuid.New()}
	log := logging.Get(logging.CategoryPipeline).With("run", res.RunID.String())
	log.Info("run started for %s", p.opts.MainSpec)

	doc, err := p.resolver.Resolve(ctx, p.opts.MainSpec, resolveOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p.opts.MainSpec, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.MainSpecTier = doc.Tier

	root, err := oj.Parse(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.opts.MainSpec, err)
	}

	res.Platforms = p.extractPlatforms(root)
	builder := sections.Builder{
		Platforms:   res.Platforms,
		Catalog:     p.opts.Catalog,
		SkipCatalog: p.opts.SkipCatalog,
	}
	secs, err := builder.Build(p.topicsInput(root))
	if err != nil {
		return nil, err
	}
	log.Info("built %d sections from %s (%s tier)", len(secs), p.opts.MainSpec, doc.Tier)

	if !ro.skipParameters {
		fallbacks, err := p.resolveParameters(ctx, secs, resolveOpts)
		if err != nil {
			return nil, err
		}
		res.FallbackSections = fallbacks
	}
	res.Sections = secs

	m, err := p.resolver.Manifest(ctx)
	if err != nil {
		logging.PipelineWarn("manifest unavailable, refresh advised: %v", err)
	}
	res.RefreshAdvised = !cache.IsFresh(m, p.opts.Now())
	res.Diagnostics = p.resolver.Diagnostics(ctx)
	res.Duration = p.opts.Now().Sub(start)

	log.Info("run finished: %d sections, %d fallback documents, refresh advised=%v",
		len(res.Sections), res.FallbackSections, res.RefreshAdvised)
	return res, nil
}

// topicsInput returns the builder input located by the topics path. A
// single array match is used as-is; otherwise the matches themselves are
// the topic list. No match yields nil, which the builder rejects.
func (p *Pipeline) topicsInput(root any) any {
	matches := p.topics.Get(root)
	switch len(matches) {
	case 0:
		return nil
	case 1:
		if arr, ok := matches[0].([]any); ok {
			return arr
		}
		return matches[0]
	default:
		return matches
	}
}

func (p *Pipeline) extractPlatforms(root any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range p.platforms.Get(root) {
		name, ok := v.(string)
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// ExtractParameters pulls the parameter definitions out of a section
// document using the configured path.
func (p *Pipeline) ExtractParameters(body []byte) ([]sections.Parameter, error) {
	root, err := oj.Parse(body)
	if err != nil {
		return nil, err
	}
	matches := p.params.Get(root)
	if len(matches) == 1 {
		if arr, ok := matches[0].([]any); ok {
			matches = arr
		}
	}
	params := make([]sections.Parameter, 0, len(matches))
	for _, m := range matches {
		if obj, ok := m.(map[string]any); ok {
			params = append(params, sections.Parameter(obj))
		}
	}
	return params, nil
}

// resolveParameters fills secs[i].Parameters concurrently. Per-section
// problems are logged and leave that section with no parameters.
func (p *Pipeline) resolveParameters(ctx context.Context, secs []sections.Section, opts []cache.ResolveOption) (int, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "parameter fan-out")
	defer timer.Stop()

	fallback := make([]bool, len(secs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Concurrency)
	for i := range secs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			doc, err := p.resolver.ResolveSection(egCtx, secs[i].Identifier, opts...)
			if err != nil {
				logging.PipelineWarn("section %q: %v", secs[i].Identifier, err)
				return nil
			}
			params, err := p.ExtractParameters(doc.Body)
			if err != nil {
				logging.PipelineWarn("section %q: unparsable document: %v", secs[i].Identifier, err)
				return nil
			}
			secs[i].Parameters = params
			fallback[i] = doc.IsFallback()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, fb := range fallback {
		if fb {
			n++
		}
	}
	return n, nil
}
