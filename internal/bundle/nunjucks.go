package bundle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// searchPathLoader resolves template names against search paths in order.
// Names starting with ./ or ../ resolve against the including template.
type searchPathLoader struct {
	dirs []string
}

func (l searchPathLoader) Abs(base, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	relative := strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")
	if !relative {
		for _, dir := range l.dirs {
			candidate := filepath.Join(dir, filepath.FromSlash(name))
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	if base != "" {
		return filepath.Join(filepath.Dir(base), filepath.FromSlash(name))
	}
	if len(l.dirs) > 0 {
		return filepath.Join(l.dirs[0], filepath.FromSlash(name))
	}
	return name
}

func (l searchPathLoader) Get(path string) (io.Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// renderNunjucks renders the template at path with an empty context.
func renderNunjucks(path string, searchPaths []string) (string, error) {
	set := pongo2.NewSet("assetpack", searchPathLoader{dirs: searchPaths})

	tpl, err := set.FromFile(path)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}

	out, err := tpl.Execute(pongo2.Context{})
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", path, err)
	}
	return out, nil
}
