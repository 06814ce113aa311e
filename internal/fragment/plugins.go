package fragment

// Plugin is a declarative plugin instance carried by a fragment. The bundle
// driver decides how each kind is executed.
type Plugin interface {
	Kind() string
}

// Plugin kinds.
const (
	KindHotReload   = "hot-reload"
	KindHTMLPage    = "html-page"
	KindExtractCSS  = "extract-css"
	KindPurifyCSS   = "purify-css"
	KindSplitChunk  = "split-chunk"
	KindClean       = "clean"
	KindMinifyJS    = "minify-js"
	KindMinifyCSS   = "minify-css"
	KindBrowserSync = "browser-sync"
	KindWatchViews  = "watch-views"
)

// HotReload injects the live-reload client into development bundles.
type HotReload struct{}

func (*HotReload) Kind() string { return KindHotReload }

// Page template engines.
const (
	EngineHTML     = "html"
	EngineNunjucks = "nunjucks"
)

// HTMLPage generates one output page from a template.
type HTMLPage struct {
	Filename    string   `yaml:"filename" json:"filename"`
	Template    string   `yaml:"template" json:"template"`
	Engine      string   `yaml:"engine" json:"engine"`
	SearchPaths []string `yaml:"searchPaths,omitempty" json:"searchPaths,omitempty"`
}

func (*HTMLPage) Kind() string { return KindHTMLPage }

// ExtractCSS writes styles to a separate stylesheet instead of injecting them
// at runtime.
type ExtractCSS struct {
	Filename  string `yaml:"filename" json:"filename"`
	AllChunks bool   `yaml:"allChunks" json:"allChunks"`
}

func (*ExtractCSS) Kind() string { return KindExtractCSS }

// PurifyCSS removes style rules whose selectors never occur in Paths.
type PurifyCSS struct {
	Paths []string `yaml:"paths" json:"paths"`
}

func (*PurifyCSS) Kind() string { return KindPurifyCSS }

// MinChunks decides which modules belong to a split chunk. Exactly one of
// Count, Predicate or Infinity is meaningful.
type MinChunks struct {
	// Count is the number of entry points that must share a module.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`
	// Predicate selects modules by resource path.
	Predicate func(resource string) bool `yaml:"-" json:"-"`
	// Describe names the predicate for inspection output.
	Describe string `yaml:"predicate,omitempty" json:"predicate,omitempty"`
	// Infinity means no module moves; the chunk only carries the build manifest.
	Infinity bool `yaml:"infinity,omitempty" json:"infinity,omitempty"`
}

// Infinite is the MinChunks value shared by every entry point.
var Infinite = MinChunks{Infinity: true}

// SplitChunk moves shared modules into a named chunk.
type SplitChunk struct {
	Name      string    `yaml:"name" json:"name"`
	MinChunks MinChunks `yaml:"minChunks" json:"minChunks"`
}

func (*SplitChunk) Kind() string { return KindSplitChunk }

// Clean deletes Paths, relative to Root, before the build.
type Clean struct {
	Paths []string `yaml:"paths" json:"paths"`
	Root  string   `yaml:"root" json:"root"`
}

func (*Clean) Kind() string { return KindClean }

// MinifyJS minifies script output. Options are passed through.
type MinifyJS struct {
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

func (*MinifyJS) Kind() string { return KindMinifyJS }

// MinifyCSS minifies stylesheet output. Options are passed through.
type MinifyCSS struct {
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

func (*MinifyCSS) Kind() string { return KindMinifyCSS }

// BrowserSync runs a live-reload proxy in front of the dev server.
type BrowserSync struct {
	Options BrowserSyncOptions `yaml:"options" json:"options"`
	// Reload is always false: the dev server owns reloading.
	Reload bool `yaml:"reload" json:"reload"`
}

// BrowserSyncOptions configures the proxy listener and its upstream.
type BrowserSyncOptions struct {
	Host  string `yaml:"host" json:"host"`
	Port  int    `yaml:"port" json:"port"`
	Proxy string `yaml:"proxy" json:"proxy"`
}

func (*BrowserSync) Kind() string { return KindBrowserSync }

// WatchViews adds Files, relative to Dir, to the watched file set of the
// entry named Entry.
type WatchViews struct {
	Entry  string   `yaml:"entry" json:"entry"`
	Script string   `yaml:"script" json:"script"`
	Dir    string   `yaml:"dir" json:"dir"`
	Files  []string `yaml:"files" json:"files"`
}

func (*WatchViews) Kind() string { return KindWatchViews }
