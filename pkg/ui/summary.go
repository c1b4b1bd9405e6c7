package ui

import (
	"fmt"
	"io"

	"setupsync/pkg/models"
)

// PrintSummary writes the end-of-run report: how many setups were installed,
// and every failed link with its cause.
func PrintSummary(w io.Writer, result models.RunResult) {
	elapsed := result.FinishedAt.Sub(result.StartedAt)

	switch {
	case result.Error != "":
		fmt.Fprintf(w, "\n%s %s\n", Red("✗"), Red("Sync failed: "+result.Error))
		return
	case result.NothingFound():
		fmt.Fprintf(w, "\n%s No eligible setups found\n", Yellow("!"))
		return
	}

	mark := Green("✓")
	if len(result.Failed) > 0 || result.Stopped {
		mark = Yellow("!")
	}
	fmt.Fprintf(w, "\n%s Downloaded %d of %d setups in %s\n",
		mark, len(result.Processed), result.Found, FormatDuration(elapsed))

	if result.Stopped {
		fmt.Fprintf(w, "  %s stopped before the end of the list\n", Dim("•"))
	}
	if n := len(result.Failed); n > 0 {
		fmt.Fprintf(w, "  %s %d failed:\n", Dim("•"), n)
		for _, f := range result.Failed {
			fmt.Fprintf(w, "    %s %s %s\n", Red("✗"), f.Link, Dim("("+f.Stage+": "+f.Message+")"))
		}
	}
	for _, item := range result.Processed {
		fmt.Fprintf(w, "  %s %s %s\n", Green("+"), item.Name, Dim(item.Package))
	}
}
