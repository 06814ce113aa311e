package bundle

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/views"
	"github.com/evanw/esbuild/pkg/api"
)

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// sourceMap maps a devtool name onto esbuild's source map modes. Eval
// variants become inline maps, hidden variants keep the map file without a
// reference comment.
func sourceMap(devtool string) api.SourceMap {
	switch {
	case devtool == "" || devtool == "none" || devtool == "false":
		return api.SourceMapNone
	case strings.Contains(devtool, "eval") || strings.Contains(devtool, "inline"):
		return api.SourceMapInline
	case strings.HasPrefix(devtool, "hidden"):
		return api.SourceMapExternal
	default:
		return api.SourceMapLinked
	}
}

// entryPoints returns the fragment's entries sorted by name.
func entryPoints(entry map[string]string) []api.EntryPoint {
	names := make([]string, 0, len(entry))
	for name := range entry {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		out = append(out, api.EntryPoint{InputPath: entry[name], OutputPath: name})
	}
	return out
}

// transpileTarget reads the language target from the first transpile step.
func transpileTarget(rules []fragment.Rule) (api.Target, error) {
	for _, rule := range rules {
		step, ok := rule.Step(fragment.LoaderTranspile)
		if !ok {
			continue
		}
		name, _ := step.Options["target"].(string)
		if name == "" {
			return api.ESNext, nil
		}
		target, ok := targets[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("unknown transpile target %q", name)
		}
		return target, nil
	}
	return api.ESNext, nil
}

// assetNames reads the first-party asset name template from the url rules.
func assetNames(rules []fragment.Rule) string {
	for _, rule := range rules {
		step, ok := rule.Step(fragment.LoaderURL)
		if !ok || step.Options["outputPath"] != nil {
			continue
		}
		if name, _ := step.Options["name"].(string); name != "" {
			return esbuildName(name, "")
		}
	}
	return "[dir]/[name]-[hash]"
}

// Options translates a merged fragment into esbuild build options. The
// returned options never write to disk; the Builder post-processes and
// writes the outputs itself.
func (b *Builder) Options() (api.BuildOptions, error) {
	frag := b.frag

	if len(frag.Entry) == 0 {
		return api.BuildOptions{}, fmt.Errorf("no entry points configured")
	}
	if !filepath.IsAbs(frag.Context) {
		return api.BuildOptions{}, fmt.Errorf("context %q must be an absolute path", frag.Context)
	}
	if frag.Output.Path == "" {
		return api.BuildOptions{}, fmt.Errorf("output path is required")
	}

	target, err := transpileTarget(frag.Rules)
	if err != nil {
		return api.BuildOptions{}, err
	}

	opts := api.BuildOptions{
		EntryPointsAdvanced: entryPoints(frag.Entry),
		AbsWorkingDir:       frag.Context,
		Outbase:             frag.Context,
		Outdir:              frag.Output.Path,
		EntryNames:          esbuildName(frag.Output.Filename, "[name]"),
		ChunkNames:          esbuildName(frag.Output.ChunkFilename, "[name]-[hash]"),
		AssetNames:          assetNames(frag.Rules),
		PublicPath:          frag.Output.PublicPath,
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		Target:              target,
		Sourcemap:           sourceMap(frag.Devtool),
		Define:              map[string]string{},
		LogLevel:            api.LogLevelSilent,
	}

	if frag.Target == "node" {
		opts.Platform = api.PlatformNode
	}

	if len(fragment.PluginsOf[*fragment.SplitChunk](frag)) > 0 {
		opts.Splitting = true
		opts.Format = api.FormatESModule
	}

	if minify := fragment.PluginsOf[*fragment.MinifyJS](frag); len(minify) > 0 {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		if keep, ok := minify[0].Options["sourceMap"].(bool); ok && !keep {
			opts.Sourcemap = api.SourceMapNone
		}
	}

	for k, v := range frag.Define {
		opts.Define[k] = v
	}

	for _, w := range fragment.PluginsOf[*fragment.WatchViews](frag) {
		opts.Plugins = append(opts.Plugins, views.Plugin(w.Script, w.Dir, w.Files))
	}

	plugins, err := b.rulePlugins()
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Plugins = append(opts.Plugins, plugins...)

	return opts, nil
}
