package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectAssets(t *testing.T) {
	out, err := injectAssets(`<!doctype html><html><head><title>x</title></head><body><main>hi</main></body></html>`,
		pageAssets{
			Styles:  []string{"/app.1234.css"},
			Scripts: []string{"/app.1234.js"},
			Module:  true,
		})
	require.NoError(t, err)
	page := string(out)

	link := strings.Index(page, `<link rel="stylesheet" href="/app.1234.css"/>`)
	headEnd := strings.Index(page, "</head>")
	script := strings.Index(page, `<script type="module" src="/app.1234.js"></script>`)
	main := strings.Index(page, "</main>")

	require.NotEqual(t, -1, link)
	require.NotEqual(t, -1, script)
	assert.Less(t, link, headEnd)
	assert.Greater(t, script, main)
}

func TestInjectAssetsFragment(t *testing.T) {
	out, err := injectAssets(`<p>bare</p>`, pageAssets{Scripts: []string{"app.js"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `<script src="app.js"></script>`)
	assert.Contains(t, string(out), "<p>bare</p>")
}

func TestRenderNunjucksPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_layout.njk"),
		[]byte(`<html><head></head><body>{% block content %}{% endblock %}</body></html>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog", "post.njk"),
		[]byte(`{% extends "_layout.njk" %}{% block content %}<article>{{ 1 + 2 }}</article>{% endblock %}`), 0o644))

	out, err := renderPage(&fragment.HTMLPage{
		Filename:    "blog/post.html",
		Template:    filepath.Join(dir, "blog", "post.njk"),
		Engine:      fragment.EngineNunjucks,
		SearchPaths: []string{dir},
	}, pageAssets{Scripts: []string{"/app.js"}})
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "<article>3</article>")
	assert.Contains(t, page, `<script src="/app.js"></script>`)
}

func TestRenderPageMissingTemplate(t *testing.T) {
	_, err := renderPage(&fragment.HTMLPage{Template: "/does/not/exist.html"}, pageAssets{})
	assert.Error(t, err)
}

func TestSearchPathLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_layout.njk"), nil, 0o644))

	loader := searchPathLoader{dirs: []string{dir}}
	base := filepath.Join(dir, "blog", "post.njk")

	assert.Equal(t, filepath.Join(dir, "_layout.njk"), loader.Abs(base, "_layout.njk"))
	assert.Equal(t, filepath.Join(dir, "blog", "part.njk"), loader.Abs(base, "./part.njk"))
	assert.Equal(t, filepath.Join(dir, "blog", "missing.njk"), loader.Abs(base, "missing.njk"))
	assert.Equal(t, "/abs.njk", loader.Abs(base, "/abs.njk"))

	_, err := loader.Get(filepath.Join(dir, "nope.njk"))
	assert.Error(t, err)
}
