package cli

import (
	"fmt"
	"io"

	"github.com/GriffinCanCode/shotdiff/internal/runner"
)

func printItem(w io.Writer, it runner.Item) {
	label := "PASS"
	switch it.Status {
	case runner.StatusFailed:
		label = "FAIL"
	case runner.StatusError:
		label = "ERR "
	}
	switch {
	case it.Status == runner.StatusError:
		fmt.Fprintf(w, "%s %s  %s\n", label, it.ID, it.Error)
	case it.Distance >= 0:
		fmt.Fprintf(w, "%s %s  %s distance=%d threshold=%d\n", label, it.ID, it.Outcome, it.Distance, it.Threshold)
	default:
		fmt.Fprintf(w, "%s %s  %s\n", label, it.ID, it.Outcome)
	}
}

func printReport(w io.Writer, r *runner.Report) {
	for _, it := range r.Results {
		printItem(w, it)
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d errors (run %s)\n",
		r.Summary.Passed, r.Summary.Failed, r.Summary.Errors, r.RunID)
}
