//go:build property

package fragment

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genFragment builds fragments whose scalar keys overlap often, so the
// override rule is exercised as much as the concatenation rule.
func genFragment() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("", "src", "app"),
		gen.OneConstOf("", "eval", "source-map"),
		gen.OneConstOf("", "dist", "build"),
		gen.IntRange(0, 3),
		gen.SliceOfN(2, gen.OneConstOf("js", "css", "html")),
		gen.OneConstOf("", "main.js", "other.js"),
		gen.IntRange(-1, 1),
	).Map(func(v []interface{}) Fragment {
		f := Fragment{
			Context: v[0].(string),
			Devtool: v[1].(string),
			Output:  Output{Path: v[2].(string)},
		}
		if port := v[3].(int); port > 0 {
			f.DevServer = &DevServer{Port: 3000 + port}
		}
		for _, test := range v[4].([]string) {
			f.Rules = append(f.Rules, Rule{Test: test})
		}
		if entry := v[5].(string); entry != "" {
			f.Entry = map[string]string{"app": entry}
		}
		switch v[6].(int) {
		case 0:
			f.Bail = Bool(false)
		case 1:
			f.Bail = Bool(true)
		}
		return f
	})
}

func TestMergeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("left grouping equals flat merge", prop.ForAll(
		func(a, b, c Fragment) bool {
			return reflect.DeepEqual(Merge(Merge(a, b), c), Merge(a, b, c))
		},
		genFragment(), genFragment(), genFragment(),
	))

	properties.Property("right grouping equals flat merge", prop.ForAll(
		func(a, b, c Fragment) bool {
			return reflect.DeepEqual(Merge(a, Merge(b, c)), Merge(a, b, c))
		},
		genFragment(), genFragment(), genFragment(),
	))

	properties.Property("rule count is the sum of inputs", prop.ForAll(
		func(a, b Fragment) bool {
			return len(Merge(a, b).Rules) == len(a.Rules)+len(b.Rules)
		},
		genFragment(), genFragment(),
	))

	properties.TestingRun(t)
}
