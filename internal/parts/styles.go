package parts

import (
	"github.com/conneroisu/assetpack/internal/fragment"
)

// DefaultBrowsers are the engines styles are prefixed for when no list is
// given.
var DefaultBrowsers = []string{"chrome58", "edge16", "firefox57", "safari11"}

const styleTest = `\.s?css$`

// StyleOptions configures LoadCSS and ExtractCSS.
type StyleOptions struct {
	Include  []string
	Exclude  []string
	Browsers []string
}

// Autoprefix returns the vendor-prefixing step for the given engines.
func Autoprefix(browsers ...string) fragment.Step {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	return fragment.Step{
		Loader:  fragment.LoaderAutoprefix,
		Options: map[string]any{"browsers": append([]string(nil), browsers...)},
	}
}

// LoadCSS injects styles at runtime: sass, then autoprefix, then css, then
// a style tag.
func LoadCSS(opts StyleOptions) fragment.Fragment {
	return fragment.Fragment{
		Rules: []fragment.Rule{{
			Test:    styleTest,
			Include: opts.Include,
			Exclude: opts.Exclude,
			Use: []fragment.Step{
				{Loader: fragment.LoaderStyle},
				{Loader: fragment.LoaderCSS},
				Autoprefix(opts.Browsers...),
				{Loader: fragment.LoaderSass},
			},
		}},
	}
}

// ExtractCSS runs the LoadCSS pipeline but writes a separate, content-hashed
// stylesheet. The rule and the plugin list share one plugin instance.
func ExtractCSS(opts StyleOptions) fragment.Fragment {
	plugin := &fragment.ExtractCSS{
		Filename:  "[name].[contenthash:8].css",
		AllChunks: true,
	}

	return fragment.Fragment{
		Rules: []fragment.Rule{{
			Test:    styleTest,
			Include: opts.Include,
			Exclude: opts.Exclude,
			Use: []fragment.Step{
				{Loader: fragment.LoaderCSS},
				Autoprefix(opts.Browsers...),
				{Loader: fragment.LoaderSass},
			},
			Extract:  plugin,
			Fallback: fragment.LoaderStyle,
		}},
		Plugins: []fragment.Plugin{plugin},
	}
}

// PurifyCSS drops style rules never referenced from paths.
func PurifyCSS(paths []string) fragment.Fragment {
	return fragment.Fragment{
		Plugins: []fragment.Plugin{&fragment.PurifyCSS{
			Paths: append([]string(nil), paths...),
		}},
	}
}

// MinifyCSS minifies stylesheet output. Recognised options are
// discardComments.removeAll and sourceMap; the rest pass through.
func MinifyCSS(options map[string]any) fragment.Fragment {
	return fragment.Fragment{
		Plugins: []fragment.Plugin{&fragment.MinifyCSS{Options: copyOptions(options)}},
	}
}
