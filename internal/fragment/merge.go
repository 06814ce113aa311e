package fragment

import (
	"fmt"
	"maps"

	"dario.cat/mergo"
)

// Merge combines fragments left to right into a new fragment.
//
// Conflicts resolve as follows:
//   - scalars: a non-zero value in a later fragment replaces the earlier one;
//   - lists (Rules, Plugins): concatenated in fragment order;
//   - nested objects (Output, DevServer) recurse field by field with the
//     scalar rule, and maps (Entry, Define) merge key by key with it.
//
// Merge is associative, so Merge(Merge(a, b), c) equals Merge(a, b, c). The
// inputs are never modified and the result shares no maps with them. Plugin
// instances are shared by reference so an extraction rule keeps pointing at
// the plugin registered next to it.
func Merge(fragments ...Fragment) Fragment {
	var out Fragment
	for _, f := range fragments {
		mergeInto(&out, f)
	}
	return out
}

func mergeInto(out *Fragment, f Fragment) {
	if f.Context != "" {
		out.Context = f.Context
	}
	if f.Target != "" {
		out.Target = f.Target
	}
	if f.Devtool != "" {
		out.Devtool = f.Devtool
	}
	if f.Bail != nil {
		out.Bail = Bool(*f.Bail)
	}

	out.Entry = mergeMap(out.Entry, f.Entry)
	out.Define = mergeMap(out.Define, f.Define)

	if err := mergo.Merge(&out.Output, f.Output, mergo.WithOverride); err != nil {
		// Output and its source always share one type.
		panic(fmt.Sprintf("fragment: merging output: %v", err))
	}

	if f.DevServer != nil {
		if out.DevServer == nil {
			ds := *f.DevServer
			out.DevServer = &ds
		} else if err := mergo.Merge(out.DevServer, *f.DevServer, mergo.WithOverride); err != nil {
			panic(fmt.Sprintf("fragment: merging dev server: %v", err))
		}
	}

	out.Rules = append(out.Rules, f.Rules...)
	out.Plugins = append(out.Plugins, f.Plugins...)
}

func mergeMap(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	merged := make(map[string]string, len(dst)+len(src))
	maps.Copy(merged, dst)
	for k, v := range src {
		if v != "" {
			merged[k] = v
		} else if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged
}
