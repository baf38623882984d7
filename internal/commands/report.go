package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/spendsort/spendsort/internal/categorize"
	"github.com/spendsort/spendsort/internal/importer"
	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/training"
)

var (
	heading = color.New(color.Bold)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed)
	dim     = color.New(color.Faint)
)

const descWidth = 40

func printSummary(w io.Writer, sum importer.Summary) {
	good.Fprintf(w, "%d added", sum.Added)
	fmt.Fprintf(w, ", %d skipped as duplicates", sum.Skipped)
	if sum.Rejected > 0 {
		warn.Fprintf(w, ", %d rejected", sum.Rejected)
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, s categorize.Stats) {
	if s.ColdStart {
		warn.Fprintln(w, "No trained model yet: every transaction was set to the fallback category.")
	}
	fmt.Fprintf(w, "%d categorized, %d below the confidence threshold", s.Categorized, s.Overridden)
	if s.Skipped > 0 {
		fmt.Fprintf(w, ", %d without a description", s.Skipped)
	}
	fmt.Fprintln(w)
}

func printDecision(w io.Writer, d categorize.Decision, threshold float64) {
	c := good
	if d.Overridden {
		c = warn
	}
	c.Fprintf(w, "%s", d.Category)
	fmt.Fprintf(w, " (confidence %.2f", d.Confidence)
	if d.Overridden {
		fmt.Fprintf(w, ", below %.2f", threshold)
	}
	fmt.Fprintln(w, ")")
}

func printTraining(w io.Writer, res *training.Result) {
	heading.Fprintln(w, "Model trained")
	fmt.Fprintf(w, "  samples     %d (%d train, %d test", res.Samples, res.TrainSize, res.TestSize)
	if res.Stratified {
		fmt.Fprint(w, ", stratified")
	}
	fmt.Fprintln(w, ")")
	if res.Excluded > 0 {
		fmt.Fprintf(w, "  excluded    %d without text or label\n", res.Excluded)
	}
	fmt.Fprintf(w, "  categories  %d\n", len(res.Classes))
	fmt.Fprintf(w, "  vocabulary  %d terms\n\n", res.Vocabulary)
	printReport(w, res.Report)
}

func printReport(w io.Writer, r training.Report) {
	heading.Fprintf(w, "%-24s %9s %9s %9s %9s\n", "", "precision", "recall", "f1", "support")
	for _, c := range r.Classes {
		row(w, c.Label, c.Metrics)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-24s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	row(w, "macro avg", r.MacroAvg)
	row(w, "weighted avg", r.WeightedAvg)
}

func row(w io.Writer, label string, m training.Metrics) {
	c := good
	switch {
	case m.F1 < 0.5:
		c = bad
	case m.F1 < 0.8:
		c = warn
	}
	fmt.Fprintf(w, "%-24s ", truncate(label, 24))
	c.Fprintf(w, "%9.2f %9.2f %9.2f", m.Precision, m.Recall, m.F1)
	fmt.Fprintf(w, " %9d\n", m.Support)
}

// printTransactions colors confident rows green, those under threshold
// yellow and those under half of it red.
func printTransactions(w io.Writer, txns []*model.Transaction, threshold float64) {
	for _, t := range txns {
		dim.Fprintf(w, "%s ", t.ID)
		fmt.Fprintf(w, "%s %-*s %10s  ", t.Date.Format("2006-01-02"), descWidth, truncate(t.Description, descWidth), t.Amount.StringFixed(2))
		c := good
		switch {
		case t.IsVerified():
		case t.ConfidenceScore < threshold/2:
			c = bad
		case t.ConfidenceScore < threshold:
			c = warn
		}
		c.Fprintf(w, "%-20s %.2f\n", t.EffectiveCategory(), t.ConfidenceScore)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
