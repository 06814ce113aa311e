// Package views makes the bundler watch page templates that no script
// imports.
//
// The development entry script resolves to an empty virtual module whose load
// result lists every discovered view as a watched file, so editing a template
// triggers a rebuild. The list and its directory are passed in explicitly.
package views

import (
	"path/filepath"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
)

const namespace = "assetpack-views"

// WatchFiles joins every view with dir. Order is preserved.
func WatchFiles(dir string, files []string) []string {
	watched := make([]string, 0, len(files))
	for _, f := range files {
		watched = append(watched, filepath.Join(dir, filepath.FromSlash(f)))
	}
	return watched
}

// Plugin returns an esbuild plugin that turns script into a module watching
// files under dir.
func Plugin(script, dir string, files []string) api.Plugin {
	watched := WatchFiles(dir, files)
	filter := "^" + regexp.QuoteMeta(script) + "$"

	return api.Plugin{
		Name: "watch-views",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      script,
						Namespace: namespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := ""
					return api.OnLoadResult{
						Contents:   &contents,
						Loader:     api.LoaderJS,
						WatchFiles: append([]string(nil), watched...),
					}, nil
				})
		},
	}
}
