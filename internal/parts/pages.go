package parts

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
)

// Glob patterns for template discovery, matched against slash-separated
// paths relative to the searched directory. A leading ** also matches an
// empty prefix, so top-level files match at any depth.
const (
	htmlPattern     = "**.html"
	nunjucksPattern = "**.njk"

	// ScriptPattern matches first-party scripts.
	ScriptPattern = "**.js"
)

// ViewPatterns match every template, pages and includes alike.
var ViewPatterns = []string{htmlPattern, nunjucksPattern}

// PagesOptions configures the template factories.
type PagesOptions struct {
	// Parent is the directory searched recursively for templates.
	Parent string
	// Fs is the filesystem to search. Nil means the OS filesystem.
	Fs afero.Fs
}

// LoadHTML returns a rule for .html modules and one page plugin per .html
// file under Parent. Files whose name starts with an underscore are left out
// of page generation so they can serve as includes.
func LoadHTML(opts PagesOptions) fragment.Fragment {
	pages := Discover(opts.Fs, opts.Parent, htmlPattern)

	plugins := make([]fragment.Plugin, 0, len(pages))
	for _, page := range pages {
		plugins = append(plugins, &fragment.HTMLPage{
			Filename: page,
			Template: filepath.Join(opts.Parent, filepath.FromSlash(page)),
			Engine:   fragment.EngineHTML,
		})
	}

	return fragment.Fragment{
		Rules: []fragment.Rule{{
			Test:    `\.html$`,
			Exclude: []string{`node_modules`},
			Use:     []fragment.Step{{Loader: fragment.LoaderHTML}},
		}},
		Plugins: plugins,
	}
}

// LoadNunjucks returns a rule for Nunjucks modules and one page plugin per
// .njk file under Parent. Output pages keep the source path with the
// extension replaced by .html.
func LoadNunjucks(opts PagesOptions) fragment.Fragment {
	pages := Discover(opts.Fs, opts.Parent, nunjucksPattern)

	plugins := make([]fragment.Plugin, 0, len(pages))
	for _, page := range pages {
		plugins = append(plugins, &fragment.HTMLPage{
			Filename:    NunjucksOutput(page),
			Template:    filepath.Join(opts.Parent, filepath.FromSlash(page)),
			Engine:      fragment.EngineNunjucks,
			SearchPaths: []string{opts.Parent},
		})
	}

	return fragment.Fragment{
		Rules: []fragment.Rule{{
			Test: `\.(njk|nunjucks)$`,
			Use: []fragment.Step{
				{Loader: fragment.LoaderHTML},
				{Loader: fragment.LoaderNunjucks, Options: map[string]any{
					"context":     opts.Parent,
					"searchPaths": []string{opts.Parent},
				}},
			},
		}},
		Plugins: plugins,
	}
}

// NunjucksOutput maps a Nunjucks source path to its output page name.
func NunjucksOutput(page string) string {
	return strings.TrimSuffix(page, path.Ext(page)) + ".html"
}

// Discover walks dir and returns the slash-separated relative paths of all
// regular files matching any of patterns, excluding files whose name starts
// with an underscore. Results are in lexical order. A missing or unreadable
// directory yields no pages.
func Discover(fs afero.Fs, dir string, patterns ...string) []string {
	return walk(fs, dir, patterns, true)
}

// Files is Discover without the underscore exclusion.
func Files(fs afero.Fs, dir string, patterns ...string) []string {
	return walk(fs, dir, patterns, false)
}

// partial reports whether rel names an include rather than a page. Only the
// base name counts, so pages inside an underscore directory are kept.
func partial(rel string) bool {
	return strings.HasPrefix(path.Base(rel), "_")
}

func walk(fs afero.Fs, dir string, patterns []string, skipPartials bool) []string {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil
		}
		matchers = append(matchers, g)
	}

	var found []string
	_ = afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are skipped, the rest of the tree still counts.
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if skipPartials && partial(rel) {
			return nil
		}
		for _, g := range matchers {
			if g.Match(rel) {
				found = append(found, rel)
				break
			}
		}
		return nil
	})

	sort.Strings(found)
	return found
}
