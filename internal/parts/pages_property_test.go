//go:build property

package parts

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
)

func genTree() gopter.Gen {
	segment := gen.OneConstOf("a", "b", "_c", "pages", "_inc")
	name := gen.OneConstOf("index", "_layout", "about", "_nav", "post")
	ext := gen.OneConstOf(".html", ".njk", ".txt")

	file := gopter.CombineGens(gen.SliceOfN(2, segment), gen.IntRange(0, 2), name, ext).
		Map(func(v []interface{}) string {
			segs := v[0].([]string)
			depth := v[1].(int)
			parts := make([]string, 0, depth+1)
			for i := 0; i < depth; i++ {
				parts = append(parts, segs[i])
			}
			parts = append(parts, v[2].(string)+v[3].(string))
			return path.Join(parts...)
		})

	return gen.SliceOf(file)
}

func writeTree(files []string) afero.Fs {
	fs := afero.NewMemMapFs()
	for _, f := range files {
		_ = afero.WriteFile(fs, filepath.Join("/views", filepath.FromSlash(f)), []byte("x"), 0o644)
	}
	return fs
}

func expected(files []string, ext string) []string {
	seen := map[string]bool{}
	var want []string
	for _, f := range files {
		if path.Ext(f) != ext || strings.HasPrefix(path.Base(f), "_") || seen[f] {
			continue
		}
		seen[f] = true
		want = append(want, f)
	}
	sort.Strings(want)
	return want
}

func TestDiscoveryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("html discovery excludes underscore files only", prop.ForAll(
		func(files []string) bool {
			got := Discover(writeTree(files), "/views", htmlPattern)
			want := expected(files, ".html")
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		genTree(),
	))

	properties.Property("file listing keeps underscore files at every depth", prop.ForAll(
		func(files []string) bool {
			got := Files(writeTree(files), "/views", ViewPatterns...)
			seen := map[string]bool{}
			var want []string
			for _, f := range files {
				if ext := path.Ext(f); (ext == ".html" || ext == ".njk") && !seen[f] {
					seen[f] = true
					want = append(want, f)
				}
			}
			sort.Strings(want)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		genTree(),
	))

	properties.Property("nunjucks pages only swap the extension", prop.ForAll(
		func(files []string) bool {
			f := LoadNunjucks(PagesOptions{Parent: "/views", Fs: writeTree(files)})
			want := expected(files, ".njk")
			pages := fragment.PluginsOf[*fragment.HTMLPage](f)
			if len(pages) != len(want) {
				return false
			}
			for i, page := range pages {
				if page.Filename != strings.TrimSuffix(want[i], ".njk")+".html" {
					return false
				}
			}
			return true
		},
		genTree(),
	))

	properties.Property("dev server echoes provided host and port", prop.ForAll(
		func(host string, port int) bool {
			ds := DevServer(DevServerOptions{Host: host, Port: port}).DevServer
			wantHost, wantPort := host, port
			if host == "" {
				wantHost = DefaultHost
			}
			if port == 0 {
				wantPort = DefaultPort
			}
			return ds.Host == wantHost && ds.Port == wantPort
		},
		gen.OneConstOf("", "localhost", "0.0.0.0", "127.0.0.1"),
		gen.IntRange(0, 65535),
	))

	properties.TestingRun(t)
}
