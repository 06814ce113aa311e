package bundle

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/evanw/esbuild/pkg/api"
)

const splitNamespace = "assetpack-split"

// splitEntries prepares chunks selected by predicate. esbuild only splits
// code shared between entry points, so a first pass finds every input the
// predicate selects and a synthetic entry importing them is added; the
// modules then land in a chunk shared with the real entries. It returns the
// metafile names of the synthetic entries.
func (b *Builder) splitEntries(opts *api.BuildOptions) (map[string]bool, error) {
	var specs []*fragment.SplitChunk
	for _, spec := range fragment.PluginsOf[*fragment.SplitChunk](b.frag) {
		if spec.MinChunks.Predicate != nil {
			specs = append(specs, spec)
		}
	}
	if len(specs) == 0 {
		return nil, nil
	}

	probe := *opts
	probe.Sourcemap = api.SourceMapNone
	result := api.Build(probe)
	if len(result.Errors) > 0 {
		// The real build reports the same errors.
		return nil, nil
	}
	meta, err := parseMetafile(result.Metafile)
	if err != nil {
		return nil, fmt.Errorf("reading probe metafile: %w", err)
	}

	selected := map[string][]string{}
	seen := map[string]bool{}
	for _, out := range sortedKeys(meta.Outputs) {
		if !isScript(out) {
			continue
		}
		for _, input := range meta.inputs(out) {
			if strings.Contains(input, ":") || seen[input] {
				continue
			}
			abs := filepath.Join(b.frag.Context, filepath.FromSlash(input))
			for _, spec := range specs {
				if spec.MinChunks.Predicate(filepath.ToSlash(abs)) {
					seen[input] = true
					selected[spec.Name] = append(selected[spec.Name], abs)
					break
				}
			}
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}

	synthetic := map[string]bool{}
	for _, spec := range specs {
		if len(selected[spec.Name]) == 0 {
			continue
		}
		input := splitNamespace + ":" + spec.Name
		opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
			InputPath:  input,
			OutputPath: "_split-" + spec.Name,
		})
		synthetic[input] = true
	}
	opts.Plugins = append([]api.Plugin{splitPlugin(selected, b.frag.Context)}, opts.Plugins...)

	return synthetic, nil
}

func splitPlugin(selected map[string][]string, cwd string) api.Plugin {
	return api.Plugin{
		Name: "split-chunks",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(splitNamespace) + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, splitNamespace+":"),
						Namespace: splitNamespace,
					}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: splitNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					var src strings.Builder
					for _, file := range selected[args.Path] {
						src.WriteString("import " + strconv.Quote(filepath.ToSlash(file)) + ";\n")
					}
					contents := src.String()
					return api.OnLoadResult{
						Contents:   &contents,
						Loader:     api.LoaderJS,
						ResolveDir: cwd,
					}, nil
				})
		},
	}
}

// chunkMatches reports whether the chunk at p belongs to spec.
func (b *Builder) chunkMatches(outs *outputSet, p string, spec *fragment.SplitChunk) bool {
	switch {
	case spec.MinChunks.Infinity:
		return false
	case spec.MinChunks.Predicate != nil:
		inputs := outs.meta.inputs(p)
		if len(inputs) == 0 {
			return false
		}
		for _, input := range inputs {
			abs := filepath.ToSlash(filepath.Join(b.frag.Context, filepath.FromSlash(input)))
			if !spec.MinChunks.Predicate(abs) {
				return false
			}
		}
		return true
	case spec.MinChunks.Count > 0:
		return outs.meta.importers(p) >= spec.MinChunks.Count
	}
	return false
}

// labelChunks renames shared chunks after the first split spec that claims
// them. A spec claiming several chunks numbers the later ones.
func (b *Builder) labelChunks(outs *outputSet) {
	specs := fragment.PluginsOf[*fragment.SplitChunk](b.frag)
	if len(specs) == 0 {
		return
	}
	template := b.frag.Output.ChunkFilename
	if template == "" {
		template = "[name].js"
	}
	if path.Ext(template) == "" {
		template += ".js"
	}

	claimed := map[string]int{}
	for _, chunk := range outs.meta.chunks() {
		for _, spec := range specs {
			if !b.chunkMatches(outs, chunk, spec) {
				continue
			}
			name := spec.Name
			if n := claimed[spec.Name]; n > 0 {
				name = fmt.Sprintf("%s-%d", spec.Name, n+1)
			}
			claimed[spec.Name]++
			target := path.Join(path.Dir(chunk), renderName(template, name, ".js", outs.files[chunk]))
			outs.rename(chunk, target)
			break
		}
	}
}
