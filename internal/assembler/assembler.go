// Package assembler builds the final bundle configuration from the fragment
// library: a shared base merged with either the production or the
// development variant.
package assembler

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/parts"
	"github.com/spf13/afero"
)

// Production is the only environment value that selects the production
// variant.
const Production = "production"

// Options carries the project layout and the tunables of both variants.
type Options struct {
	// Root is the project root; Clean never reaches outside it.
	Root string
	// App is the source directory, the context of every entry.
	App string
	// Build is the output directory.
	Build string
	// Views holds the page templates.
	Views string
	// Entry is the application script, relative to App.
	Entry string
	// WatchScript is the development entry that carries the view watcher.
	WatchScript string

	DevServerHost string
	DevServerPort int
	ProxyHost     string
	ProxyPort     int

	AssetLimit int
	AssetName  string
	Browsers   []string

	Fs afero.Fs
}

// DefaultOptions returns the layout of a project rooted at root.
func DefaultOptions(root string) Options {
	app := filepath.Join(root, "src")
	return Options{
		Root:          root,
		App:           app,
		Build:         filepath.Join(root, "dist"),
		Views:         filepath.Join(app, "views"),
		Entry:         "./js/main.js",
		WatchScript:   "../config/entry.js",
		DevServerHost: "localhost",
		DevServerPort: 3100,
		ProxyHost:     "localhost",
		ProxyPort:     3000,
		AssetLimit:    4096,
		AssetName:     "[name].[hash:8].[ext]",
	}
}

// IsProduction reports whether env selects the production variant. Only the
// exact string "production" does.
func IsProduction(env string) bool {
	return env == Production
}

// Assemble returns Merge(base, variant) where the variant is chosen by env.
func Assemble(env string, opts Options) fragment.Fragment {
	if IsProduction(env) {
		return fragment.Merge(Base(opts), ProductionConfig(opts))
	}
	return fragment.Merge(Base(opts), DevelopmentConfig(opts))
}

// Base is the configuration shared by both variants.
func Base(opts Options) fragment.Fragment {
	return fragment.Merge(
		fragment.Fragment{
			Context: opts.App,
			Target:  "web",
			Entry:   map[string]string{"app": opts.Entry},
			Output: fragment.Output{
				Path:       opts.Build,
				Filename:   "[name].js",
				PublicPath: "/",
			},
		},
		parts.LoadHTML(parts.PagesOptions{Parent: opts.Views, Fs: opts.Fs}),
		parts.LoadNunjucks(parts.PagesOptions{Parent: opts.Views, Fs: opts.Fs}),
		parts.Clean(parts.CleanOptions{Path: opts.Build, Root: opts.Root}),
	)
}

var dependencyDir = regexp.MustCompile(`node_modules`)

// ProductionConfig hashes, minifies, extracts and splits.
func ProductionConfig(opts Options) fragment.Fragment {
	return fragment.Merge(
		fragment.Fragment{
			Output: fragment.Output{
				ChunkFilename: "[name].[chunkhash:8].js",
				Filename:      "[name].[chunkhash:8].js",
			},
		},
		parts.MinifyJavaScript(map[string]any{
			"sourceMap": true,
		}),
		parts.MinifyCSS(map[string]any{
			"discardComments": map[string]any{"removeAll": true},
			"safe":            true,
			"sourceMap":       true,
			"map":             map[string]any{"inline": false},
		}),
		parts.ExtractCSS(parts.StyleOptions{Browsers: opts.Browsers}),
		parts.PurifyCSS(purifyPaths(opts)),
		parts.LoadAssets(parts.AssetOptions{
			Limit: opts.AssetLimit,
			Name:  opts.AssetName,
		}),
		parts.GenerateSourceMaps("source-map"),
		parts.ExtractBundles(
			parts.BundleSpec{
				Name: "vendor",
				MinChunks: fragment.MinChunks{
					Predicate: dependencyDir.MatchString,
					Describe:  "resource matches " + dependencyDir.String(),
				},
			},
			parts.BundleSpec{
				Name:      "manifest",
				MinChunks: fragment.Infinite,
			},
		),
	)
}

// DevelopmentConfig serves, proxies, injects styles inline and watches views.
func DevelopmentConfig(opts Options) fragment.Fragment {
	return fragment.Merge(
		fragment.Fragment{
			Bail: fragment.Bool(false),
		},
		parts.BrowserSync(fragment.BrowserSyncOptions{
			Host:  opts.ProxyHost,
			Port:  opts.ProxyPort,
			Proxy: fmt.Sprintf("http://%s:%d/", devServerHost(opts), opts.DevServerPort),
		}),
		parts.DevServer(parts.DevServerOptions{
			Host: opts.DevServerHost,
			Port: opts.DevServerPort,
		}),
		parts.LoadCSS(parts.StyleOptions{Browsers: opts.Browsers}),
		parts.LoadAssets(parts.AssetOptions{}),
		parts.GenerateSourceMaps("cheap-module-eval-source-map"),
		parts.AddEntries(parts.EntriesOptions{
			Script: opts.WatchScript,
			Path:   opts.Views,
			Fs:     opts.Fs,
		}),
	)
}

func devServerHost(opts Options) string {
	if opts.DevServerHost == "" {
		return "localhost"
	}
	return opts.DevServerHost
}

// purifyPaths lists every first-party script and template. Templates are
// scanned too so classes used only in markup survive purification.
func purifyPaths(opts Options) []string {
	var paths []string
	for _, rel := range parts.Files(opts.Fs, opts.App, parts.ScriptPattern) {
		paths = append(paths, filepath.Join(opts.App, filepath.FromSlash(rel)))
	}
	for _, rel := range parts.Files(opts.Fs, opts.Views, parts.ViewPatterns...) {
		paths = append(paths, filepath.Join(opts.Views, filepath.FromSlash(rel)))
	}
	return paths
}
