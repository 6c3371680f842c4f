// Package merge inserts matched candidate records into the itinerary
// and re-validates the chronological invariant after every insertion.
package merge

import (
	"fmt"
	"sort"

	"github.com/tripstitch/tripstitch/internal/extract"
	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/itinerary"
	"github.com/tripstitch/tripstitch/internal/match"
)

// ValidationRejection reports an insertion that would have corrupted
// the sequence; it is rolled back and the gap stays unfilled.
type ValidationRejection struct {
	GapNumber int
	Reason    string
}

func (e *ValidationRejection) Error() string {
	return fmt.Sprintf("gap #%d: insertion rejected: %s", e.GapNumber, e.Reason)
}

// Insertion records one accepted merge.
type Insertion struct {
	GapNumber int
	Leg       itinerary.TravelLeg
}

// Outcome summarizes the merge step.
type Outcome struct {
	Inserted  []Insertion
	Rejected  []*ValidationRejection
	GapsFixed map[int]bool // gap number -> discontinuity closed after merge
}

// Merger is the sole writer of the itinerary store. Insertions are
// applied sequentially in ascending departure order so each
// re-validation sees a fully updated sequence; extraction parallelism
// never reaches this step.
type Merger struct {
	store *itinerary.Store
}

// NewMerger wraps the store to be mutated.
func NewMerger(store *itinerary.Store) *Merger {
	return &Merger{store: store}
}

// Apply converts each resolved candidate into a leg and inserts it at
// its chronological position, gap by gap. After a gap's candidates are
// all in, the neighborhood is re-analyzed; if the discontinuity is
// still open or a fresh one appeared, that gap's insertions are rolled
// back and the gap reported rejected.
func (m *Merger) Apply(result match.Result) Outcome {
	outcome := Outcome{GapsFixed: map[int]bool{}}

	for _, res := range result.Resolutions {
		if !res.Filled() {
			continue
		}
		if rej := m.applyResolution(res); rej != nil {
			outcome.Rejected = append(outcome.Rejected, rej)
			continue
		}
		outcome.GapsFixed[res.Gap.Number] = true
		for _, c := range res.Candidates {
			outcome.Inserted = append(outcome.Inserted, Insertion{GapNumber: res.Gap.Number, Leg: c.ToTravelLeg()})
		}
	}
	return outcome
}

// applyResolution inserts one gap's candidates in ascending departure
// order, then validates the bridged neighborhood. Any failure removes
// every leg inserted for this gap.
func (m *Merger) applyResolution(res match.Resolution) *ValidationRejection {
	candidates := append([]extract.CandidateRecord(nil), res.Candidates...)
	sort.SliceStable(candidates, func(i, j int) bool {
		di, errI := candidates[i].DepartureInstant()
		dj, errJ := candidates[j].DepartureInstant()
		if errI != nil || errJ != nil {
			return false
		}
		return di.Before(dj)
	})

	var inserted []int
	rollback := func() {
		// Remove in descending index order so earlier indexes stay valid.
		sort.Sort(sort.Reverse(sort.IntSlice(inserted)))
		for _, idx := range inserted {
			m.store.RemoveAt(idx)
		}
	}

	for _, c := range candidates {
		leg := c.ToTravelLeg()
		if err := leg.Validate(); err != nil {
			rollback()
			return &ValidationRejection{GapNumber: res.Gap.Number, Reason: err.Error()}
		}
		idx := m.store.Insert(leg)
		for i, prev := range inserted {
			if prev >= idx {
				inserted[i] = prev + 1
			}
		}
		inserted = append(inserted, idx)

		if !m.store.IsSorted() {
			rollback()
			return &ValidationRejection{GapNumber: res.Gap.Number, Reason: "store unsorted after insert"}
		}
	}

	if rej := m.validateBridge(res, inserted); rej != nil {
		rollback()
		return rej
	}
	return nil
}

// validateBridge re-runs the analyzer and confirms the chain is
// seamless: the prior leg's arrival connects to the first inserted
// departure, consecutive insertions connect to each other, and the
// last inserted arrival connects to the following leg's departure.
func (m *Merger) validateBridge(res match.Resolution, inserted []int) *ValidationRejection {
	legs := m.store.Legs()
	if _, err := gap.Analyze(legs); err != nil {
		return &ValidationRejection{GapNumber: res.Gap.Number, Reason: err.Error()}
	}

	idxs := append([]int(nil), inserted...)
	sort.Ints(idxs)

	reject := func(format string, args ...interface{}) *ValidationRejection {
		return &ValidationRejection{GapNumber: res.Gap.Number, Reason: fmt.Sprintf(format, args...)}
	}

	first, last := idxs[0], idxs[len(idxs)-1]
	if first > 0 {
		prev := legs[first-1]
		if !itinerary.SameCity(prev.ArrivalCity, legs[first].DepartureCity) {
			return reject("first inserted leg departs %s but prior leg arrives %s",
				itinerary.ExtractCityName(legs[first].DepartureCity),
				itinerary.ExtractCityName(prev.ArrivalCity))
		}
	}
	for i := 0; i+1 < len(idxs); i++ {
		a, b := legs[idxs[i]], legs[idxs[i+1]]
		if !itinerary.SameCity(a.ArrivalCity, b.DepartureCity) {
			return reject("chain legs disconnect at %s -> %s",
				itinerary.ExtractCityName(a.ArrivalCity),
				itinerary.ExtractCityName(b.DepartureCity))
		}
	}
	if last+1 < len(legs) {
		next := legs[last+1]
		if !itinerary.SameCity(legs[last].ArrivalCity, next.DepartureCity) {
			return reject("last inserted leg arrives %s but next leg departs %s",
				itinerary.ExtractCityName(legs[last].ArrivalCity),
				itinerary.ExtractCityName(next.DepartureCity))
		}
	}
	return nil
}
