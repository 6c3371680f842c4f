package filter

import (
	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/mailbox"
)

// TemporalFilter keeps documents whose send date falls inside at least
// one gap's evidence window. The long lookback catches advance
// bookings; the short lookahead catches late confirmations. One pooled
// pass serves every gap, so extraction cost is O(emails), not
// O(emails x gaps).
type TemporalFilter struct {
	LookbackMonths int // default 12
	LookaheadDays  int // default 7
}

// NewTemporalFilter returns a filter with the production window.
func NewTemporalFilter() *TemporalFilter {
	return &TemporalFilter{LookbackMonths: 12, LookaheadDays: 7}
}

// Apply retains docs dated within [priorArrival - lookback,
// nextDeparture + lookahead] for any gap. Undated documents are
// dropped: with no send date there is no window to test.
func (f *TemporalFilter) Apply(docs []mailbox.EmailDocument, gaps []gap.Gap) []mailbox.EmailDocument {
	lookback := f.LookbackMonths
	if lookback <= 0 {
		lookback = 12
	}
	lookahead := f.LookaheadDays
	if lookahead <= 0 {
		lookahead = 7
	}

	var kept []mailbox.EmailDocument
	for _, doc := range docs {
		if !doc.HasDate() {
			continue
		}
		for _, g := range gaps {
			if g.PriorArrivalDate.IsZero() || g.NextDepartureDate.IsZero() {
				continue
			}
			from, to := g.Window(lookback, lookahead)
			if !doc.Date.Before(from) && !doc.Date.After(to) {
				kept = append(kept, doc)
				break
			}
		}
	}
	return kept
}
