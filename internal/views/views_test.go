package views

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFiles(t *testing.T) {
	got := WatchFiles("/src/views", []string{"index.html", "blog/post.njk"})

	assert.Equal(t, []string{
		filepath.Join("/src/views", "index.html"),
		filepath.Join("/src/views", "blog", "post.njk"),
	}, got)
	assert.Empty(t, WatchFiles("/src/views", nil))
}

func TestPluginRegistersWatchFiles(t *testing.T) {
	var (
		resolve func(api.OnResolveArgs) (api.OnResolveResult, error)
		load    func(api.OnLoadArgs) (api.OnLoadResult, error)
		filter  string
	)
	build := api.PluginBuild{
		OnResolve: func(opts api.OnResolveOptions, cb func(api.OnResolveArgs) (api.OnResolveResult, error)) {
			filter = opts.Filter
			resolve = cb
		},
		OnLoad: func(opts api.OnLoadOptions, cb func(api.OnLoadArgs) (api.OnLoadResult, error)) {
			assert.Equal(t, namespace, opts.Namespace)
			load = cb
		},
	}

	plugin := Plugin("../config/entry.js", "/src/views", []string{"a.html", "b.njk"})
	plugin.Setup(build)

	assert.Equal(t, `^\.\./config/entry\.js$`, filter)
	require.NotNil(t, resolve)
	require.NotNil(t, load)

	resolved, err := resolve(api.OnResolveArgs{Path: "../config/entry.js"})
	require.NoError(t, err)
	assert.Equal(t, namespace, resolved.Namespace)

	loaded, err := load(api.OnLoadArgs{Path: resolved.Path, Namespace: resolved.Namespace})
	require.NoError(t, err)
	require.NotNil(t, loaded.Contents)
	assert.Empty(t, *loaded.Contents)
	assert.Equal(t, []string{
		filepath.Join("/src/views", "a.html"),
		filepath.Join("/src/views", "b.njk"),
	}, loaded.WatchFiles)

	// Callers may not mutate the plugin's list through a result.
	loaded.WatchFiles[0] = "changed"
	again, _ := load(api.OnLoadArgs{})
	assert.Equal(t, filepath.Join("/src/views", "a.html"), again.WatchFiles[0])
}

func TestPluginBuildsEmptyEntry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>hi</p>"), 0o644))

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: []api.EntryPoint{{InputPath: "views:watch", OutputPath: "development"}},
		AbsWorkingDir:       dir,
		Outdir:              filepath.Join(dir, "out"),
		Bundle:              true,
		Write:               false,
		Plugins:             []api.Plugin{Plugin("views:watch", dir, []string{"index.html"})},
	})

	require.Empty(t, result.Errors)
	require.Len(t, result.OutputFiles, 1)
	assert.Equal(t, "development.js", filepath.Base(result.OutputFiles[0].Path))
}
