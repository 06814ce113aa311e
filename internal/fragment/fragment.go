// Package fragment defines the declarative configuration fragments that are
// composed into a single bundle configuration.
//
// A Fragment is produced once by a factory in the parts package, never mutated
// afterwards, and consumed by Merge. Fields left at their zero value are
// treated as absent so that a fragment only contributes what it sets.
package fragment

import (
	"fmt"
	"regexp"
)

// Fragment is a partial, mergeable bundle configuration.
type Fragment struct {
	Context   string            `yaml:"context,omitempty" json:"context,omitempty"`
	Target    string            `yaml:"target,omitempty" json:"target,omitempty"`
	Entry     map[string]string `yaml:"entry,omitempty" json:"entry,omitempty"`
	Output    Output            `yaml:"output,omitempty" json:"output,omitempty"`
	Rules     []Rule            `yaml:"rules,omitempty" json:"rules,omitempty"`
	Plugins   []Plugin          `yaml:"-" json:"-"`
	DevServer *DevServer        `yaml:"devServer,omitempty" json:"devServer,omitempty"`
	Devtool   string            `yaml:"devtool,omitempty" json:"devtool,omitempty"`
	Bail      *bool             `yaml:"bail,omitempty" json:"bail,omitempty"`
	Define    map[string]string `yaml:"define,omitempty" json:"define,omitempty"`
}

// Output describes where and under which names bundles are written.
//
// Filename templates understand [name], [hash], [chunkhash:N] and
// [contenthash:N].
type Output struct {
	Path          string `yaml:"path,omitempty" json:"path,omitempty"`
	Filename      string `yaml:"filename,omitempty" json:"filename,omitempty"`
	ChunkFilename string `yaml:"chunkFilename,omitempty" json:"chunkFilename,omitempty"`
	PublicPath    string `yaml:"publicPath,omitempty" json:"publicPath,omitempty"`
}

// Rule applies a chain of loader steps to every module whose path matches
// Test, is matched by Include (when set) and is not matched by Exclude.
// All three hold regular expressions.
type Rule struct {
	Test    string   `yaml:"test" json:"test"`
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Use     []Step   `yaml:"use" json:"use"`

	// Extract routes the rule output through an extraction plugin. It must be
	// the same instance that is registered in the fragment's plugin list.
	Extract  *ExtractCSS `yaml:"extract,omitempty" json:"extract,omitempty"`
	Fallback string      `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// Step is one loader in a rule chain. Steps run last to first, the way the
// chain reads from the output side back to the source file.
type Step struct {
	Loader  string         `yaml:"loader" json:"loader"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Loader names understood by the bundle driver.
const (
	LoaderTranspile  = "transpile"
	LoaderStyle      = "style"
	LoaderCSS        = "css"
	LoaderAutoprefix = "autoprefix"
	LoaderSass       = "sass"
	LoaderHTML       = "html"
	LoaderNunjucks   = "nunjucks"
	LoaderURL        = "url"
)

// Uses reports whether the rule chain contains the named loader.
func (r Rule) Uses(loader string) bool {
	for _, step := range r.Use {
		if step.Loader == loader {
			return true
		}
	}
	return false
}

// Step returns the first step using loader.
func (r Rule) Step(loader string) (Step, bool) {
	for _, step := range r.Use {
		if step.Loader == loader {
			return step, true
		}
	}
	return Step{}, false
}

// Matcher compiles Test, Include and Exclude into one predicate over module
// paths.
func (r Rule) Matcher() (func(path string) bool, error) {
	test, err := regexp.Compile(r.Test)
	if err != nil {
		return nil, fmt.Errorf("rule test %q: %w", r.Test, err)
	}
	include, err := compileAll(r.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(r.Exclude)
	if err != nil {
		return nil, err
	}

	return func(path string) bool {
		if !test.MatchString(path) {
			return false
		}
		if len(include) > 0 && !anyMatch(include, path) {
			return false
		}
		return !anyMatch(exclude, path)
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("rule condition %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func anyMatch(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// DevServer configures the development HTTP server.
type DevServer struct {
	Host    string  `yaml:"host,omitempty" json:"host,omitempty"`
	Port    int     `yaml:"port,omitempty" json:"port,omitempty"`
	Hot     bool    `yaml:"hot,omitempty" json:"hot,omitempty"`
	Stats   string  `yaml:"stats,omitempty" json:"stats,omitempty"`
	Overlay Overlay `yaml:"overlay,omitempty" json:"overlay,omitempty"`
}

// Overlay selects which build messages are shown in the browser overlay.
type Overlay struct {
	Errors   bool `yaml:"errors,omitempty" json:"errors,omitempty"`
	Warnings bool `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// FailFast reports whether a build error should abort the build. An unset
// Bail keeps the fail-fast default.
func (f Fragment) FailFast() bool {
	return f.Bail == nil || *f.Bail
}

// PluginsOf returns every plugin of type T in f, in order.
func PluginsOf[T Plugin](f Fragment) []T {
	var found []T
	for _, p := range f.Plugins {
		if t, ok := p.(T); ok {
			found = append(found, t)
		}
	}
	return found
}

// Bool returns a pointer to b, for the optional boolean fields.
func Bool(b bool) *bool {
	return &b
}
