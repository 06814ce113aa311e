package parts

import (
	"encoding/json"

	"github.com/conneroisu/assetpack/internal/fragment"
	"github.com/spf13/afero"
)

// DevelopmentEntry is the entry name of the view watching script.
const DevelopmentEntry = "development"

// EntriesOptions configures AddEntries.
type EntriesOptions struct {
	// Script is added as the development entry point.
	Script string
	// Path is the views directory searched for .html and .njk files.
	Path string
	Fs   afero.Fs
}

// AddEntries adds the view watching entry. The discovered views and their
// directory are handed to the watch plugin directly and also defined as the
// VIEWS and PATH constants for scripts that read them.
func AddEntries(opts EntriesOptions) fragment.Fragment {
	pages := Discover(opts.Fs, opts.Path, ViewPatterns...)
	if pages == nil {
		pages = []string{}
	}

	views, _ := json.Marshal(pages)
	dir, _ := json.Marshal(opts.Path)

	return fragment.Fragment{
		Entry: map[string]string{DevelopmentEntry: opts.Script},
		Define: map[string]string{
			"VIEWS": string(views),
			"PATH":  string(dir),
		},
		Plugins: []fragment.Plugin{&fragment.WatchViews{
			Entry:  DevelopmentEntry,
			Script: opts.Script,
			Dir:    opts.Path,
			Files:  pages,
		}},
	}
}
