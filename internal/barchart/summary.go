package barchart

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary groups the regions of a batch by outcome, in the order they were processed.
type Summary struct {
	Succeeded []string
	Skipped   []string
	Failed    []string
	// Errors holds the reason each failed region failed.
	Errors map[string]error
}

func (s Summary) Total() int {
	return len(s.Succeeded) + len(s.Skipped) + len(s.Failed)
}

// Render writes the summary as a table, followed by a reminder to update
// the manifest if anything new was downloaded.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("DOWNLOAD SUMMARY")
	t.AppendHeader(table.Row{"Outcome", "Count", "Regions"})
	t.AppendRows([]table.Row{
		{"Successful downloads", len(s.Succeeded), strings.Join(s.Succeeded, ", ")},
		{"Skipped (already exist)", len(s.Skipped), strings.Join(s.Skipped, ", ")},
		{"Failed downloads", len(s.Failed), strings.Join(s.Failed, ", ")},
	})
	t.Render()

	for _, code := range s.Failed {
		if err, ok := s.Errors[code]; ok {
			fmt.Fprintf(w, "  %s: %v\n", code, err)
		}
	}

	if len(s.Succeeded) > 0 {
		fmt.Fprintln(w, "\nDon't forget to update the manifest:")
		fmt.Fprintln(w, "  barchart --create-manifest")
	}
}
