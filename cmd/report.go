package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/assetpack/internal/bundle"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/ryanuber/columnize"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// printResult writes the emitted files as a table followed by every message
// of the build.
func printResult(w io.Writer, res *bundle.Result) {
	if res == nil {
		return
	}

	if len(res.Outputs) > 0 {
		output := []string{"ASSET | SIZE"}
		var total uint64
		for _, out := range res.Outputs {
			output = append(output, fmt.Sprintf("%s | %s", out.Path, humanize.Bytes(uint64(out.Size))))
			total += uint64(out.Size)
		}
		fmt.Fprintln(w, columnize.SimpleFormat(output))
		fmt.Fprintln(w)
		successColor.Fprintf(w, "Built %d files (%s) in %s\n",
			len(res.Outputs), humanize.Bytes(total), res.Duration.Round(1e6))
	}

	for i := range res.Warnings {
		warningColor.Fprintln(w, res.Warnings[i].Error())
	}
	for i := range res.Errors {
		errorColor.Fprintln(w, res.Errors[i].Error())
	}
}
