package parts

import (
	"github.com/conneroisu/assetpack/internal/fragment"
)

const (
	assetTest = `\.(ttf|eot|woff2?|png|jpe?g|gif|svg|ico)$`

	// VendorAssetPath is where assets from the dependency directory land.
	VendorAssetPath = "assets/vendor/"

	defaultAssetName = "[name].[ext]"
)

// AssetOptions configures LoadAssets.
type AssetOptions struct {
	Include []string
	// Exclude defaults to the dependency directory for first-party assets.
	Exclude []string
	// Limit inlines files smaller than this many bytes as data URLs. Zero
	// never inlines.
	Limit int
	// Name is the output name template, e.g. "[name].[hash:8].[ext]".
	Name string
}

// LoadAssets returns two rules for fonts and images: one for first-party
// files, and one that always emits dependency-directory files under
// VendorAssetPath.
func LoadAssets(opts AssetOptions) fragment.Fragment {
	name := opts.Name
	if name == "" {
		name = defaultAssetName
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = []string{`node_modules`}
	}

	return fragment.Fragment{
		Rules: []fragment.Rule{
			{
				Test:    assetTest,
				Include: opts.Include,
				Exclude: exclude,
				Use: []fragment.Step{{
					Loader: fragment.LoaderURL,
					Options: map[string]any{
						"name":  "[path]" + name,
						"limit": opts.Limit,
					},
				}},
			},
			{
				Test:    assetTest,
				Include: []string{`node_modules`},
				Exclude: opts.Exclude,
				Use: []fragment.Step{{
					Loader: fragment.LoaderURL,
					Options: map[string]any{
						"outputPath": VendorAssetPath,
						"name":       name,
						"limit":      opts.Limit,
					},
				}},
			},
		},
	}
}
