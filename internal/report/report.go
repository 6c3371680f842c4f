// Package report assembles the end-of-run summary: one line per gap
// with its outcome, incongruent-event warnings, and stage counters.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/tripstitch/tripstitch/internal/gap"
)

// Outcome is the final state of one gap after a run.
type Outcome string

const (
	OutcomeFilled           Outcome = "filled"
	OutcomeNoEvidence       Outcome = "unfilled-no-evidence"
	OutcomeRetriesExhausted Outcome = "unfilled-retries-exhausted"
	OutcomeRejected         Outcome = "rejected-validation"
	// OutcomeOpen marks analysis-only runs where no evidence search ran.
	OutcomeOpen Outcome = "open"
)

// GapReport pairs a gap with its outcome and, when filled, the email
// files the fill came from.
type GapReport struct {
	Gap     gap.Gap
	Outcome Outcome
	Sources []string
}

// RunReport is the user-visible result of a pipeline run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	LegsLoaded     int
	RowsDropped    int
	EmailsScanned  int
	EmailsKeyword  int
	EmailsTemporal int
	BatchesTotal   int
	BatchesFailed  int
	Candidates     int
	Malformed      int

	Gaps        []GapReport
	Incongruent []gap.IncongruentEvent
	OutputFile  string
}

// FilledCount returns how many gaps closed.
func (r *RunReport) FilledCount() int {
	n := 0
	for _, g := range r.Gaps {
		if g.Outcome == OutcomeFilled {
			n++
		}
	}
	return n
}

// Render formats the report for the CLI.
func (r *RunReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Gaps found: %d\n", len(r.Gaps))
	for _, g := range r.Gaps {
		marker := "!"
		if g.Gap.Kind == gap.KindCity {
			marker = "~"
		}
		fmt.Fprintf(&b, "  %s gap #%d (%s): %s (%s) -> %s (%s) [%d days] %s",
			marker, g.Gap.Number, g.Gap.Kind,
			g.Gap.PriorArrivalCity, g.Gap.PriorArrivalCountry,
			g.Gap.NextDepartureCity, g.Gap.NextDepartureCountry,
			g.Gap.DaysBetween, g.Outcome)
		if len(g.Sources) > 0 {
			fmt.Fprintf(&b, " (via %s)", strings.Join(g.Sources, ", "))
		}
		if g.Gap.LowConfidence {
			b.WriteString(" [low-confidence classification]")
		}
		b.WriteString("\n")
	}

	if len(r.Incongruent) > 0 {
		fmt.Fprintf(&b, "Incongruent events: %d\n", len(r.Incongruent))
		for _, ev := range r.Incongruent {
			fmt.Fprintf(&b, "  warning: %s\n", ev.Description)
		}
	}

	fmt.Fprintf(&b, "Legs loaded: %d (%d rows dropped)\n", r.LegsLoaded, r.RowsDropped)
	fmt.Fprintf(&b, "Emails: %d scanned, %d keyword-matched, %d in window\n",
		r.EmailsScanned, r.EmailsKeyword, r.EmailsTemporal)
	fmt.Fprintf(&b, "Batches: %d total, %d failed\n", r.BatchesTotal, r.BatchesFailed)
	fmt.Fprintf(&b, "Candidates: %d extracted, %d malformed dropped\n", r.Candidates, r.Malformed)
	fmt.Fprintf(&b, "Gaps filled: %d/%d\n", r.FilledCount(), len(r.Gaps))
	if r.OutputFile != "" {
		fmt.Fprintf(&b, "Saved: %s\n", r.OutputFile)
	}
	return b.String()
}
