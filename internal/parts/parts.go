// Package parts is the configuration fragment library.
//
// Every factory is a pure function of its options (and, for the template
// factories, of the filesystem at call time) returning a fresh fragment that
// the assembler merges into the final configuration. No factory returns an
// error: bad inputs degrade to empty fragments and invalid plugin options are
// left for the bundle driver to reject.
package parts

import (
	"github.com/conneroisu/assetpack/internal/fragment"
)

// Dev server defaults.
const (
	DefaultHost = "localhost"
	DefaultPort = 8080
)

// DevServerOptions configures DevServer. Zero fields take the defaults.
type DevServerOptions struct {
	Host string
	Port int
}

// DevServer enables live reloading and the error/warning overlay.
func DevServer(opts DevServerOptions) fragment.Fragment {
	host := opts.Host
	if host == "" {
		host = DefaultHost
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}

	return fragment.Fragment{
		DevServer: &fragment.DevServer{
			Host:  host,
			Port:  port,
			Hot:   true,
			Stats: "errors-only",
			Overlay: fragment.Overlay{
				Errors:   true,
				Warnings: true,
			},
		},
		Plugins: []fragment.Plugin{&fragment.HotReload{}},
	}
}

// LoadJS transpiles first-party scripts down to ES2015.
func LoadJS() fragment.Fragment {
	return fragment.Fragment{
		Rules: []fragment.Rule{{
			Test:    `\.js$`,
			Exclude: []string{`(node_modules|bower_components)`},
			Use: []fragment.Step{{
				Loader:  fragment.LoaderTranspile,
				Options: map[string]any{"target": "es2015"},
			}},
		}},
	}
}

// GenerateSourceMaps sets the source map strategy, for example "source-map"
// or "cheap-module-eval-source-map".
func GenerateSourceMaps(devtool string) fragment.Fragment {
	return fragment.Fragment{Devtool: devtool}
}

// BundleSpec names a split chunk and the modules it collects.
type BundleSpec struct {
	Name      string
	MinChunks fragment.MinChunks
}

// ExtractBundles adds one chunk-splitting plugin per spec, in order.
func ExtractBundles(specs ...BundleSpec) fragment.Fragment {
	plugins := make([]fragment.Plugin, 0, len(specs))
	for _, spec := range specs {
		plugins = append(plugins, &fragment.SplitChunk{
			Name:      spec.Name,
			MinChunks: spec.MinChunks,
		})
	}
	return fragment.Fragment{Plugins: plugins}
}

// CleanOptions configures Clean.
type CleanOptions struct {
	// Path is removed before the build.
	Path string
	// Root bounds the removal; Path must resolve inside it.
	Root string
}

// Clean removes the build directory before the build.
func Clean(opts CleanOptions) fragment.Fragment {
	return fragment.Fragment{
		Plugins: []fragment.Plugin{&fragment.Clean{
			Paths: []string{opts.Path},
			Root:  opts.Root,
		}},
	}
}

// MinifyJavaScript minifies script output. Options are passed to the
// minifier unchanged; "sourceMap" keeps source maps for minified output.
func MinifyJavaScript(options map[string]any) fragment.Fragment {
	return fragment.Fragment{
		Plugins: []fragment.Plugin{&fragment.MinifyJS{Options: copyOptions(options)}},
	}
}

// BrowserSync proxies the dev server through a second listener. Reloading is
// always left to the dev server.
func BrowserSync(options fragment.BrowserSyncOptions) fragment.Fragment {
	return fragment.Fragment{
		Plugins: []fragment.Plugin{&fragment.BrowserSync{
			Options: options,
			Reload:  false,
		}},
	}
}

func copyOptions(options map[string]any) map[string]any {
	if options == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(options))
	for k, v := range options {
		out[k] = v
	}
	return out
}
