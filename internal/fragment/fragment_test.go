package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleMatcher(t *testing.T) {
	rule := Rule{
		Test:    `\.(png|svg)$`,
		Include: []string{`/src/`, `node_modules`},
		Exclude: []string{`/src/legacy/`},
	}

	match, err := rule.Matcher()
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"/app/src/img/logo.png", true},
		{"/app/node_modules/icons/x.svg", true},
		{"/app/src/legacy/old.png", false},
		{"/app/other/logo.png", false},
		{"/app/src/img/logo.gif", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, match(tt.path))
		})
	}
}

func TestRuleMatcherWithoutConditions(t *testing.T) {
	match, err := Rule{Test: `\.js$`}.Matcher()
	require.NoError(t, err)
	assert.True(t, match("/anywhere/main.js"))
}

func TestRuleMatcherInvalid(t *testing.T) {
	_, err := Rule{Test: `(`}.Matcher()
	assert.Error(t, err)

	_, err = Rule{Test: `x`, Exclude: []string{`[`}}.Matcher()
	assert.Error(t, err)
}

func TestRuleSteps(t *testing.T) {
	rule := Rule{Use: []Step{
		{Loader: LoaderCSS},
		{Loader: LoaderAutoprefix, Options: map[string]any{"browsers": []string{"chrome58"}}},
	}}

	assert.True(t, rule.Uses(LoaderCSS))
	assert.False(t, rule.Uses(LoaderSass))

	step, ok := rule.Step(LoaderAutoprefix)
	require.True(t, ok)
	assert.Equal(t, []string{"chrome58"}, step.Options["browsers"])

	_, ok = rule.Step(LoaderURL)
	assert.False(t, ok)
}

func TestFailFast(t *testing.T) {
	assert.True(t, Fragment{}.FailFast())
	assert.True(t, Fragment{Bail: Bool(true)}.FailFast())
	assert.False(t, Fragment{Bail: Bool(false)}.FailFast())
}

func TestPluginsOf(t *testing.T) {
	extract := &ExtractCSS{Filename: "x.css"}
	f := Fragment{Plugins: []Plugin{&HotReload{}, extract, &Clean{}, &ExtractCSS{}}}

	got := PluginsOf[*ExtractCSS](f)
	require.Len(t, got, 2)
	assert.Same(t, extract, got[0])
	assert.Empty(t, PluginsOf[*BrowserSync](f))
}
