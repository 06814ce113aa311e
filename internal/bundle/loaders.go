package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/evanw/esbuild/pkg/api"
)

var engineName = regexp.MustCompile(`^([a-z]+)(\d[\d.]*)$`)

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"safari":  api.EngineSafari,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"node":    api.EngineNode,
}

// parseEngines turns browser names such as "chrome58" into esbuild engines.
func parseEngines(browsers []string) ([]api.Engine, error) {
	out := make([]api.Engine, 0, len(browsers))
	for _, b := range browsers {
		m := engineName.FindStringSubmatch(strings.ToLower(strings.TrimSpace(b)))
		if m == nil {
			return nil, fmt.Errorf("unrecognised browser %q", b)
		}
		name, ok := engines[m[1]]
		if !ok {
			return nil, fmt.Errorf("unsupported browser %q", m[1])
		}
		out = append(out, api.Engine{Name: name, Version: m[2]})
	}
	return out, nil
}

// stringList reads a string list option that may have come through YAML.
func stringList(v any) []string {
	switch v := v.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

func intOption(v any) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// rulePlugins builds one esbuild plugin per rule that needs more than
// esbuild's built-in loaders.
func (b *Builder) rulePlugins() ([]api.Plugin, error) {
	var plugins []api.Plugin
	for i, rule := range b.frag.Rules {
		match, err := rule.Matcher()
		if err != nil {
			return nil, err
		}

		var load func(path string) (api.OnLoadResult, error)
		name := fmt.Sprintf("rule-%d", i)

		switch {
		case rule.Uses(fragment.LoaderCSS):
			load, err = b.styleLoader(rule)
			name += "-styles"
		case rule.Uses(fragment.LoaderURL):
			load = assetLoader(rule)
			name += "-assets"
		case rule.Uses(fragment.LoaderNunjucks):
			load = b.nunjucksLoader(rule)
			name += "-nunjucks"
		case rule.Uses(fragment.LoaderHTML):
			load = textLoader
			name += "-html"
		default:
			// Scripts need nothing beyond the global target.
			continue
		}
		if err != nil {
			return nil, err
		}

		plugins = append(plugins, rulePlugin(name, rule.Test, match, load))
	}
	return plugins, nil
}

func rulePlugin(name, test string, match func(string) bool, load func(string) (api.OnLoadResult, error)) api.Plugin {
	return api.Plugin{
		Name: name,
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: test, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					if !match(filepath.ToSlash(args.Path)) {
						return api.OnLoadResult{}, nil
					}
					return load(args.Path)
				})
		},
	}
}

func textLoader(path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	contents := string(data)
	return api.OnLoadResult{Contents: &contents, Loader: api.LoaderText}, nil
}

// assetLoader inlines files below the rule's limit as data URLs and emits the
// rest as separate files.
func assetLoader(rule fragment.Rule) func(string) (api.OnLoadResult, error) {
	step, _ := rule.Step(fragment.LoaderURL)
	limit := intOption(step.Options["limit"])

	return func(path string) (api.OnLoadResult, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		contents := string(data)
		loader := api.LoaderFile
		if limit > 0 && len(data) < limit {
			loader = api.LoaderDataURL
		}
		return api.OnLoadResult{Contents: &contents, Loader: loader}, nil
	}
}

// styleLoader compiles sass, prefixes for the configured browsers, then
// either hands the stylesheet to esbuild for extraction or wraps it in a
// module that injects a style tag.
func (b *Builder) styleLoader(rule fragment.Rule) (func(string) (api.OnLoadResult, error), error) {
	var engineList []api.Engine
	if step, ok := rule.Step(fragment.LoaderAutoprefix); ok {
		var err error
		engineList, err = parseEngines(stringList(step.Options["browsers"]))
		if err != nil {
			return nil, err
		}
	}
	sass := rule.Uses(fragment.LoaderSass)
	extract := rule.Extract != nil

	return func(path string) (api.OnLoadResult, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		css := string(data)

		ext := filepath.Ext(path)
		if sass && (ext == ".scss" || ext == ".sass") {
			css, err = b.sass.compile(path, css, []string{filepath.Dir(path), b.frag.Context})
			if err != nil {
				return api.OnLoadResult{}, err
			}
		}

		if len(engineList) > 0 {
			result := api.Transform(css, api.TransformOptions{
				Loader:     api.LoaderCSS,
				Engines:    engineList,
				Sourcefile: path,
			})
			if len(result.Errors) > 0 {
				return api.OnLoadResult{}, fmt.Errorf("autoprefix %s: %s", path, result.Errors[0].Text)
			}
			css = string(result.Code)
		}

		if extract {
			return api.OnLoadResult{
				Contents:   &css,
				Loader:     api.LoaderCSS,
				ResolveDir: filepath.Dir(path),
			}, nil
		}

		module := styleModule(css)
		return api.OnLoadResult{Contents: &module, Loader: api.LoaderJS}, nil
	}, nil
}

func styleModule(css string) string {
	quoted, _ := json.Marshal(css)
	return `var css = ` + string(quoted) + `;
if (typeof document !== "undefined") {
  var style = document.createElement("style");
  style.setAttribute("data-assetpack", "");
  style.textContent = css;
  document.head.appendChild(style);
}
export default css;
`
}

// nunjucksLoader renders a template module to text, resolving includes
// against the rule's search paths.
func (b *Builder) nunjucksLoader(rule fragment.Rule) func(string) (api.OnLoadResult, error) {
	step, _ := rule.Step(fragment.LoaderNunjucks)
	searchPaths := stringList(step.Options["searchPaths"])

	return func(path string) (api.OnLoadResult, error) {
		out, err := renderNunjucks(path, searchPaths)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		return api.OnLoadResult{Contents: &out, Loader: api.LoaderText}, nil
	}
}
