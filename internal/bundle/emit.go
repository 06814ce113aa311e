package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/evanw/esbuild/pkg/api"
)

var sourceMapComment = regexp.MustCompile(`/\*# sourceMappingURL=[^*]*\*/\s*`)

func isScript(p string) bool { return strings.HasSuffix(p, ".js") || strings.HasSuffix(p, ".mjs") }
func isStyle(p string) bool  { return strings.HasSuffix(p, ".css") }

func isText(p string) bool {
	switch path.Ext(p) {
	case ".js", ".mjs", ".css", ".map", ".html", ".json":
		return true
	}
	return false
}

// outputSet holds emitted files keyed by slash path relative to dir, along
// with the metafile rebased onto the same keys.
type outputSet struct {
	dir        string
	publicPath string
	files      map[string][]byte
	meta       *BuildMetadata
}

func newOutputSet(dir, cwd, publicPath string, result *api.BuildResult) (*outputSet, error) {
	raw, err := parseMetafile(result.Metafile)
	if err != nil {
		return nil, fmt.Errorf("reading metafile: %w", err)
	}

	rebase := func(p string) string {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, filepath.FromSlash(p))
		}
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			return p
		}
		return filepath.ToSlash(rel)
	}

	meta := &BuildMetadata{Outputs: make(map[string]OutputInfo, len(raw.Outputs))}
	for key, info := range raw.Outputs {
		imports := make([]ImportInfo, 0, len(info.Imports))
		for _, imp := range info.Imports {
			if !imp.External {
				imp.Path = rebase(imp.Path)
			}
			imports = append(imports, imp)
		}
		info.Imports = imports
		if info.CSSBundle != "" {
			info.CSSBundle = rebase(info.CSSBundle)
		}
		meta.Outputs[rebase(key)] = info
	}

	outs := &outputSet{
		dir:        dir,
		publicPath: publicPath,
		files:      make(map[string][]byte, len(result.OutputFiles)),
		meta:       meta,
	}
	for _, f := range result.OutputFiles {
		outs.files[rebase(f.Path)] = f.Contents
	}
	return outs, nil
}

// remove deletes a file and its metafile record.
func (o *outputSet) remove(p string) {
	delete(o.files, p)
	delete(o.meta.Outputs, p)
}

// rename moves a file, its source map and its metafile record, and rewrites
// references to it in every text output.
func (o *outputSet) rename(oldPath, newPath string) {
	if oldPath == newPath {
		return
	}
	o.files[newPath] = o.files[oldPath]
	delete(o.files, oldPath)
	if m, ok := o.files[oldPath+".map"]; ok {
		o.files[newPath+".map"] = m
		delete(o.files, oldPath+".map")
	}

	if info, ok := o.meta.Outputs[oldPath]; ok {
		o.meta.Outputs[newPath] = info
		delete(o.meta.Outputs, oldPath)
	}
	for key, info := range o.meta.Outputs {
		for i := range info.Imports {
			if info.Imports[i].Path == oldPath {
				info.Imports[i].Path = newPath
			}
		}
		if info.CSSBundle == oldPath {
			info.CSSBundle = newPath
		}
		o.meta.Outputs[key] = info
	}

	for p, data := range o.files {
		if !isText(p) {
			continue
		}
		updated := data
		if o.publicPath != "" {
			updated = replaceAll(updated, o.publicPath+oldPath, o.publicPath+newPath)
		}
		from := path.Dir(p)
		updated = replaceAll(updated, relPath(from, oldPath), relPath(from, newPath))
		o.files[p] = updated
	}
}

func replaceAll(data []byte, old, new string) []byte {
	s := string(data)
	if !strings.Contains(s, old) {
		return data
	}
	return []byte(strings.ReplaceAll(s, old, new))
}

// relPath is the slash path of target seen from directory from.
func relPath(from, target string) string {
	rel, err := filepath.Rel(filepath.FromSlash(from), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}

// url is how a file at p is referenced from a page at page.
func (o *outputSet) url(page, p string) string {
	if o.publicPath != "" {
		return o.publicPath + p
	}
	return relPath(path.Dir(page), p)
}

func (o *outputSet) write() error {
	for _, p := range sortedKeys(o.files) {
		target := filepath.Join(o.dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, o.files[p], 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
	}
	return nil
}

func (o *outputSet) list() []Output {
	out := make([]Output, 0, len(o.files))
	for _, p := range sortedKeys(o.files) {
		out = append(out, Output{Path: p, Size: len(o.files[p])})
	}
	return out
}

// emit post-processes the in-memory build result. synthetic names entry
// points that only exist to shape split chunks; their outputs are dropped.
func (b *Builder) emit(result *api.BuildResult, synthetic map[string]bool) (*outputSet, error) {
	outs, err := newOutputSet(b.outdir(), b.frag.Context, b.frag.Output.PublicPath, result)
	if err != nil {
		return nil, err
	}

	for p, info := range outs.meta.Outputs {
		if synthetic[info.EntryPoint] {
			outs.remove(p)
			outs.remove(p + ".map")
		}
	}

	b.labelChunks(outs)

	if err := b.relocateVendorAssets(outs); err != nil {
		return nil, err
	}
	if err := b.processStyles(outs); err != nil {
		return nil, err
	}

	entries := b.entryOutputs(outs)
	if err := b.writeManifests(outs, entries); err != nil {
		return nil, err
	}
	if err := b.writePages(outs, entries); err != nil {
		return nil, err
	}
	return outs, nil
}

// entryOutput pairs an entry name with its output script.
type entryOutput struct {
	Name   string
	Output string
}

// entryOutputs lists the outputs of configured entries, sorted by name,
// skipping the development watch entry.
func (b *Builder) entryOutputs(outs *outputSet) []entryOutput {
	names := b.entryNames()
	watch := map[string]bool{}
	for _, w := range fragment.PluginsOf[*fragment.WatchViews](b.frag) {
		watch[w.Entry] = true
	}

	var entries []entryOutput
	for p, info := range outs.meta.Outputs {
		if info.EntryPoint == "" || !isScript(p) {
			continue
		}
		name, ok := names[metaEntry(info.EntryPoint)]
		if !ok || watch[name] {
			continue
		}
		entries = append(entries, entryOutput{Name: name, Output: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// processStyles purges, minifies and renames extracted stylesheets.
func (b *Builder) processStyles(outs *outputSet) error {
	purifiers := fragment.PluginsOf[*fragment.PurifyCSS](b.frag)
	minifiers := fragment.PluginsOf[*fragment.MinifyCSS](b.frag)
	extracts := fragment.PluginsOf[*fragment.ExtractCSS](b.frag)

	var words map[string]bool
	if len(purifiers) > 0 {
		var paths []string
		for _, p := range purifiers {
			paths = append(paths, p.Paths...)
		}
		words = collectWords(paths)
	}

	for _, p := range sortedKeys(outs.files) {
		if !isStyle(p) {
			continue
		}
		data := outs.files[p]
		changed := false

		if words != nil {
			purified, err := purify(data, words)
			if err != nil {
				return fmt.Errorf("purifying %s: %w", p, err)
			}
			data, changed = purified, true
		}
		for _, m := range minifiers {
			minified, err := minifyCSS(data, m.Options)
			if err != nil {
				return fmt.Errorf("minifying %s: %w", p, err)
			}
			data, changed = minified, true
		}
		if changed {
			data = sourceMapComment.ReplaceAll(data, nil)
			delete(outs.files, p+".map")
		}
		outs.files[p] = data
	}

	if len(extracts) == 0 {
		return nil
	}
	template := extracts[0].Filename
	for _, entry := range b.entryOutputs(outs) {
		css := outs.meta.Outputs[entry.Output].CSSBundle
		if css == "" {
			continue
		}
		if _, ok := outs.files[css]; !ok {
			continue
		}
		name := renderName(template, entry.Name, ".css", outs.files[css])
		outs.rename(css, name)
	}
	return nil
}

func minifyCSS(data []byte, options map[string]any) ([]byte, error) {
	opts := api.TransformOptions{
		Loader:            api.LoaderCSS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
	}
	if discard, ok := options["discardComments"].(map[string]any); ok {
		if all, _ := discard["removeAll"].(bool); all {
			opts.LegalComments = api.LegalCommentsNone
		}
	}

	result := api.Transform(string(data), opts)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%s", result.Errors[0].Text)
	}
	return result.Code, nil
}

// relocateVendorAssets moves emitted assets whose source comes from the
// dependency directory under the vendor rule's output path.
func (b *Builder) relocateVendorAssets(outs *outputSet) error {
	for _, rule := range b.frag.Rules {
		step, ok := rule.Step(fragment.LoaderURL)
		if !ok {
			continue
		}
		outputPath, _ := step.Options["outputPath"].(string)
		if outputPath == "" {
			continue
		}
		match, err := rule.Matcher()
		if err != nil {
			return err
		}
		name, _ := step.Options["name"].(string)
		if name == "" {
			name = "[name].[ext]"
		}

		for _, p := range sortedKeys(outs.meta.Outputs) {
			if isText(p) {
				continue
			}
			inputs := outs.meta.inputs(p)
			if len(inputs) != 1 {
				continue
			}
			source := filepath.ToSlash(filepath.Join(b.frag.Context, filepath.FromSlash(inputs[0])))
			if !match(source) {
				continue
			}
			ext := path.Ext(source)
			target := path.Join(outputPath, renderName(name, stem(source), ext, outs.files[p]))
			outs.rename(p, target)
		}
	}
	return nil
}

// manifestEntry lists what a page must load for one entry.
type manifestEntry struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles,omitempty"`
}

// writeManifests emits <name>.json for every split chunk that moves no
// modules.
func (b *Builder) writeManifests(outs *outputSet, entries []entryOutput) error {
	for _, spec := range fragment.PluginsOf[*fragment.SplitChunk](b.frag) {
		if !spec.MinChunks.Infinity {
			continue
		}
		manifest := make(map[string]manifestEntry, len(entries))
		for _, e := range entries {
			var me manifestEntry
			for _, s := range outs.meta.scripts(e.Output) {
				me.Scripts = append(me.Scripts, outs.url("", s))
			}
			if css := outs.meta.Outputs[e.Output].CSSBundle; css != "" {
				me.Styles = append(me.Styles, outs.url("", css))
			}
			manifest[e.Name] = me
		}
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return err
		}
		outs.files[spec.Name+".json"] = append(data, '\n')
	}
	return nil
}

// writePages renders every page and links the entry outputs into it.
func (b *Builder) writePages(outs *outputSet, entries []entryOutput) error {
	module := len(fragment.PluginsOf[*fragment.SplitChunk](b.frag)) > 0

	for _, page := range fragment.PluginsOf[*fragment.HTMLPage](b.frag) {
		target := path.Clean(filepath.ToSlash(page.Filename))
		assets := pageAssets{Module: module}
		for _, e := range entries {
			if css := outs.meta.Outputs[e.Output].CSSBundle; css != "" {
				assets.Styles = append(assets.Styles, outs.url(target, css))
			}
			assets.Scripts = append(assets.Scripts, outs.url(target, e.Output))
		}

		data, err := renderPage(page, assets)
		if err != nil {
			return fmt.Errorf("page %s: %w", page.Filename, err)
		}
		outs.files[target] = data
	}
	return nil
}
