// Package bundle runs an assembled configuration through esbuild.
//
// The Builder translates a fragment into esbuild options, executes the loader
// rules as esbuild plugins, then post-processes the in-memory outputs
// (split-chunk naming, stylesheet extraction, purging and minification,
// vendor asset placement, page generation and the build manifest) before
// writing them to the output directory.
package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/conneroisu/assetpack/internal/errors"
	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/logging"
	"github.com/evanw/esbuild/pkg/api"
)

// Builder builds one assembled configuration.
type Builder struct {
	frag   fragment.Fragment
	logger logging.Logger
	sass   *sassCompiler

	mu sync.Mutex
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for build progress.
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.WithComponent("bundle")
	}
}

// WithSassBinary sets the Dart Sass executable. Empty means "sass" on PATH.
func WithSassBinary(path string) Option {
	return func(b *Builder) {
		b.sass.binary = path
	}
}

// New creates a Builder for frag.
func New(frag fragment.Fragment, opts ...Option) *Builder {
	b := &Builder{
		frag:   frag,
		logger: logging.Discard(),
		sass:   &sassCompiler{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Close stops the sass compiler if it was started.
func (b *Builder) Close() error {
	return b.sass.close()
}

// Output is one written file.
type Output struct {
	// Path is slash-separated and relative to the output directory.
	Path string
	Size int
}

// Result describes one finished build.
type Result struct {
	Outputs  []Output
	Errors   []apperrors.BuildError
	Warnings []apperrors.BuildError
	Duration time.Duration
}

// Build runs a single build. When the configuration fails fast, any bundler
// error is returned as a *errors.BuildFailure; otherwise errors are reported
// in the Result and nothing is written.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := logging.StartOperation(b.logger, "build")

	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	if err := b.clean(); err != nil {
		return nil, err
	}

	synthetic, err := b.splitEntries(&opts)
	if err != nil {
		return nil, err
	}

	result := api.Build(opts)
	return b.finish(ctx, &result, synthetic, op)
}

// Watch builds once, then rebuilds whenever an input changes until ctx is
// done. onBuild receives every result. Errors never stop watching.
func (b *Builder) Watch(ctx context.Context, onBuild func(*Result, error)) error {
	opts, err := b.Options()
	if err != nil {
		return err
	}
	if err := b.clean(); err != nil {
		return err
	}

	var op *logging.PerfLogger
	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "assetpack-report",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				op = logging.StartOperation(b.logger, "rebuild")
				return api.OnStartResult{}, nil
			})
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				res, err := b.finish(ctx, result, nil, op)
				if onBuild != nil {
					onBuild(res, err)
				}
				return api.OnEndResult{}, nil
			})
		},
	})

	esctx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return &apperrors.BuildFailure{
			Errors: apperrors.FromMessages(ctxErr.Errors, apperrors.ErrorSeverityError),
		}
	}
	defer esctx.Dispose()

	if err := esctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("starting watch: %w", err)
	}
	b.logger.Info(ctx, "Watching for changes", "context", b.frag.Context)

	<-ctx.Done()
	return nil
}

func (b *Builder) finish(ctx context.Context, result *api.BuildResult, synthetic map[string]bool, op *logging.PerfLogger) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := &Result{
		Errors:   apperrors.FromMessages(result.Errors, apperrors.ErrorSeverityError),
		Warnings: apperrors.FromMessages(result.Warnings, apperrors.ErrorSeverityWarning),
	}
	defer func() { res.Duration = op.Elapsed() }()

	for _, w := range res.Warnings {
		b.logger.Warn(ctx, nil, w.Message, "file", w.File, "line", w.Line)
	}

	if len(res.Errors) == 0 {
		outs, err := b.emit(result, synthetic)
		if err == nil {
			err = outs.write()
		}
		if err != nil {
			res.Errors = append(res.Errors, apperrors.BuildError{
				Message:   err.Error(),
				Severity:  apperrors.ErrorSeverityError,
				Timestamp: time.Now(),
			})
		} else {
			res.Outputs = outs.list()
		}
	}

	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			b.logger.Error(ctx, &e, "Build error")
		}
		failure := &apperrors.BuildFailure{Errors: res.Errors}
		op.EndWithError(ctx, failure)
		if b.frag.FailFast() {
			return res, failure
		}
		return res, nil
	}

	op.End(ctx, "outputs", len(res.Outputs))
	return res, nil
}

// clean removes every configured path. Paths must stay strictly inside
// their root.
func (b *Builder) clean() error {
	for _, c := range fragment.PluginsOf[*fragment.Clean](b.frag) {
		root, err := filepath.Abs(c.Root)
		if err != nil {
			return err
		}
		for _, p := range c.Paths {
			target := p
			if !filepath.IsAbs(target) {
				target = filepath.Join(root, target)
			}
			rel, err := filepath.Rel(root, target)
			if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return fmt.Errorf("refusing to clean %s outside of %s", target, root)
			}
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("cleaning %s: %w", target, err)
			}
		}
	}
	return nil
}

// outdir returns the absolute output directory.
func (b *Builder) outdir() string {
	if filepath.IsAbs(b.frag.Output.Path) {
		return b.frag.Output.Path
	}
	return filepath.Join(b.frag.Context, b.frag.Output.Path)
}

// entryNames maps each entry's input, as esbuild reports it, to its name.
func (b *Builder) entryNames() map[string]string {
	out := make(map[string]string, len(b.frag.Entry))
	for name, input := range b.frag.Entry {
		out[prettyInput(b.frag.Context, input)] = name
	}
	return out
}

// prettyInput normalises an entry input to the form found in the metafile.
func prettyInput(cwd, input string) string {
	if filepath.IsAbs(input) {
		if rel, err := filepath.Rel(cwd, input); err == nil {
			input = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(input))
}

// metaEntry strips a namespace prefix from a metafile entry point.
func metaEntry(entryPoint string) string {
	if i := strings.Index(entryPoint, ":"); i > 0 && !strings.HasPrefix(entryPoint[i:], ":/") && !strings.HasPrefix(entryPoint[i:], `:\`) {
		return entryPoint[i+1:]
	}
	return entryPoint
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
