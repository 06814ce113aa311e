package bundle

import (
	"testing"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/conneroisu/assetpack/internal/parts"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseFragment() fragment.Fragment {
	return fragment.Fragment{
		Context: "/project/src",
		Entry:   map[string]string{"b": "./b.js", "a": "./a.js"},
		Output:  fragment.Output{Path: "/project/dist", Filename: "[name].[chunkhash:8].js", PublicPath: "/"},
	}
}

func TestSourceMap(t *testing.T) {
	tests := []struct {
		devtool string
		want    api.SourceMap
	}{
		{"", api.SourceMapNone},
		{"none", api.SourceMapNone},
		{"source-map", api.SourceMapLinked},
		{"cheap-module-eval-source-map", api.SourceMapInline},
		{"inline-source-map", api.SourceMapInline},
		{"hidden-source-map", api.SourceMapExternal},
	}

	for _, tt := range tests {
		t.Run(tt.devtool, func(t *testing.T) {
			assert.Equal(t, tt.want, sourceMap(tt.devtool))
		})
	}
}

func TestOptionsTranslation(t *testing.T) {
	frag := fragment.Merge(
		baseFragment(),
		parts.LoadJS(),
		parts.MinifyJavaScript(map[string]any{"sourceMap": true}),
		parts.GenerateSourceMaps("source-map"),
		parts.ExtractBundles(parts.BundleSpec{Name: "manifest", MinChunks: fragment.Infinite}),
		fragment.Fragment{Define: map[string]string{"DEBUG": "false"}},
	)

	opts, err := New(frag).Options()
	require.NoError(t, err)

	require.Len(t, opts.EntryPointsAdvanced, 2)
	assert.Equal(t, api.EntryPoint{InputPath: "./a.js", OutputPath: "a"}, opts.EntryPointsAdvanced[0])
	assert.Equal(t, api.EntryPoint{InputPath: "./b.js", OutputPath: "b"}, opts.EntryPointsAdvanced[1])
	assert.Equal(t, "/project/src", opts.AbsWorkingDir)
	assert.Equal(t, "/project/dist", opts.Outdir)
	assert.Equal(t, "[name].[hash]", opts.EntryNames)
	assert.Equal(t, api.ES2015, opts.Target)
	assert.True(t, opts.Splitting)
	assert.Equal(t, api.FormatESModule, opts.Format)
	assert.True(t, opts.MinifyWhitespace)
	assert.True(t, opts.MinifyIdentifiers)
	assert.True(t, opts.MinifySyntax)
	assert.Equal(t, api.SourceMapLinked, opts.Sourcemap)
	assert.Equal(t, "false", opts.Define["DEBUG"])
	assert.False(t, opts.Write)
	assert.True(t, opts.Metafile)
	assert.Equal(t, "/", opts.PublicPath)
}

func TestOptionsWithoutSplitting(t *testing.T) {
	opts, err := New(baseFragment()).Options()
	require.NoError(t, err)

	assert.False(t, opts.Splitting)
	assert.Equal(t, api.FormatIIFE, opts.Format)
	assert.Equal(t, api.ESNext, opts.Target)
	assert.False(t, opts.MinifyWhitespace)
	assert.Equal(t, api.SourceMapNone, opts.Sourcemap)
	assert.Equal(t, "[dir]/[name]-[hash]", opts.AssetNames)
}

func TestOptionsAssetNames(t *testing.T) {
	frag := fragment.Merge(baseFragment(), parts.LoadAssets(parts.AssetOptions{Name: "[name].[hash:8].[ext]", Limit: 10}))

	opts, err := New(frag).Options()
	require.NoError(t, err)
	assert.Equal(t, "[dir]/[name].[hash]", opts.AssetNames)
}

func TestOptionsWatchViews(t *testing.T) {
	frag := fragment.Merge(baseFragment(), fragment.Fragment{
		Plugins: []fragment.Plugin{&fragment.WatchViews{Entry: "development", Script: "../config/entry.js", Dir: "/project/src/views"}},
	})

	opts, err := New(frag).Options()
	require.NoError(t, err)
	require.NotEmpty(t, opts.Plugins)
	assert.Equal(t, "watch-views", opts.Plugins[0].Name)
}

func TestOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		frag fragment.Fragment
	}{
		{"no entries", fragment.Fragment{Context: "/p", Output: fragment.Output{Path: "/p/dist"}}},
		{"relative context", fragment.Fragment{Context: "src", Entry: map[string]string{"a": "./a.js"}, Output: fragment.Output{Path: "dist"}}},
		{"no output", fragment.Fragment{Context: "/p", Entry: map[string]string{"a": "./a.js"}}},
		{"bad target", fragment.Merge(baseFragment(), fragment.Fragment{Rules: []fragment.Rule{{
			Test: `\.js$`,
			Use:  []fragment.Step{{Loader: fragment.LoaderTranspile, Options: map[string]any{"target": "es1999"}}},
		}}})},
		{"bad browsers", fragment.Merge(baseFragment(), parts.LoadCSS(parts.StyleOptions{Browsers: []string{"netscape4"}}))},
		{"bad rule", fragment.Merge(baseFragment(), fragment.Fragment{Rules: []fragment.Rule{{
			Test: `(`,
			Use:  []fragment.Step{{Loader: fragment.LoaderHTML}},
		}}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.frag).Options()
			assert.Error(t, err)
		})
	}
}
