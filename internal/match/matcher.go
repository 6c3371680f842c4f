// Package match reconciles extracted candidate records against open
// gaps using location containment and temporal proximity.
package match

import (
	"sort"
	"strings"
	"time"

	"github.com/tripstitch/tripstitch/internal/extract"
	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/itinerary"
)

// matchBuffer widens the gap window slightly when scoring candidates;
// travel frequently books or lands a few days either side of the
// recorded dates.
const matchBuffer = 7 * 24 * time.Hour

// Resolution is the outcome for one gap: zero candidates (unfilled),
// one (the common case), or several forming a contiguous chain.
type Resolution struct {
	Gap        gap.Gap
	Candidates []extract.CandidateRecord
}

// Filled reports whether any candidate resolved the gap.
func (r Resolution) Filled() bool {
	return len(r.Candidates) > 0
}

// Result is the full matching outcome across all gaps.
type Result struct {
	Resolutions []Resolution
	Discarded   []error // malformed candidates dropped before scoring
}

// Matcher scores candidates against gaps. MultiLeg enables chaining
// two records across one gap; the conservative default requires the
// chain to be date-contiguous end to end.
type Matcher struct {
	MultiLeg bool
}

// NewMatcher returns a matcher with multi-leg resolution enabled.
func NewMatcher() *Matcher {
	return &Matcher{MultiLeg: true}
}

// Match assigns candidates to gaps. Each candidate is used at most
// once, and gaps are processed in itinerary order so earlier gaps get
// first claim — preserving chronological non-overlap between
// acceptances.
func (m *Matcher) Match(gaps []gap.Gap, candidates []extract.CandidateRecord) Result {
	result := Result{}

	// Drop inverted candidates before scoring.
	var pool []extract.CandidateRecord
	for _, c := range candidates {
		dep, errDep := c.DepartureInstant()
		arr, errArr := c.ArrivalInstant()
		if errDep != nil || errArr != nil || arr.Before(dep) {
			result.Discarded = append(result.Discarded, &itinerary.MalformedRecordError{
				Field: "candidate", Value: c.DepartureCity + "->" + c.ArrivalCity, Reason: "inverted or unparseable instants",
			})
			continue
		}
		pool = append(pool, c)
	}

	used := make([]bool, len(pool))
	for _, g := range gaps {
		res := Resolution{Gap: g}

		if idx, ok := m.bestSingle(g, pool, used); ok {
			used[idx] = true
			res.Candidates = []extract.CandidateRecord{pool[idx]}
		} else if m.MultiLeg {
			if first, second, ok := m.bestChain(g, pool, used); ok {
				used[first] = true
				used[second] = true
				res.Candidates = []extract.CandidateRecord{pool[first], pool[second]}
			}
		}

		result.Resolutions = append(result.Resolutions, res)
	}
	return result
}

// bestSingle finds the highest-scoring unused candidate that connects
// both ends of the gap.
func (m *Matcher) bestSingle(g gap.Gap, pool []extract.CandidateRecord, used []bool) (int, bool) {
	type scored struct {
		idx   int
		score candidateScore
	}
	var matches []scored
	for i, c := range pool {
		if used[i] {
			continue
		}
		if !connectsStart(c, g) || !connectsEnd(c, g) {
			continue
		}
		s, ok := scoreCandidate(c, g)
		if !ok {
			continue
		}
		matches = append(matches, scored{idx: i, score: s})
	}
	if len(matches) == 0 {
		return 0, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score.better(matches[j].score)
	})
	return matches[0].idx, true
}

// bestChain looks for two unused candidates forming a contiguous
// two-leg route across the gap: prior arrival -> intermediate ->
// next departure, with the second departing no later than a day after
// the first arrives.
func (m *Matcher) bestChain(g gap.Gap, pool []extract.CandidateRecord, used []bool) (int, int, bool) {
	for i, first := range pool {
		if used[i] || !connectsStart(first, g) {
			continue
		}
		if _, ok := scoreCandidate(first, g); !ok {
			continue
		}
		for j, second := range pool {
			if j == i || used[j] || !connectsEnd(second, g) {
				continue
			}
			if _, ok := scoreCandidate(second, g); !ok {
				continue
			}
			if !itinerary.SameCity(first.ArrivalCity, second.DepartureCity) {
				continue
			}
			if !contiguous(first, second) {
				continue
			}
			return i, j, true
		}
	}
	return 0, 0, false
}

// contiguous requires the second leg to depart on or after the first
// leg's arrival, within one day.
func contiguous(first, second extract.CandidateRecord) bool {
	arr, err := first.ArrivalInstant()
	if err != nil {
		return false
	}
	dep, err := second.DepartureInstant()
	if err != nil {
		return false
	}
	return !dep.Before(arr) && dep.Sub(arr) <= 24*time.Hour
}

// connectsStart checks that the candidate departs from the gap's prior
// arrival location (normalized containment either direction).
func connectsStart(c extract.CandidateRecord, g gap.Gap) bool {
	return cityMatches(c.DepartureCity, g.PriorArrivalCity) &&
		countryCompatible(c.DepartureCountry, g.PriorArrivalCountry)
}

// connectsEnd checks that the candidate arrives at the gap's next
// departure location.
func connectsEnd(c extract.CandidateRecord, g gap.Gap) bool {
	return cityMatches(c.ArrivalCity, g.NextDepartureCity) &&
		countryCompatible(c.ArrivalCountry, g.NextDepartureCountry)
}

func cityMatches(candidate, gapCity string) bool {
	a := strings.ToLower(itinerary.ExtractCityName(candidate))
	b := strings.ToLower(itinerary.ExtractCityName(gapCity))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// countryCompatible treats a missing country as a wildcard; a present
// one must match the gap's normalized code.
func countryCompatible(candidate, gapCountry string) bool {
	if strings.TrimSpace(candidate) == "" || strings.TrimSpace(gapCountry) == "" {
		return true
	}
	norm, _ := itinerary.NormalizeCountry(candidate)
	return strings.EqualFold(norm, gapCountry)
}

// candidateScore orders candidates for one gap: exact window hit
// first, then nearest date, then most populated fields.
type candidateScore struct {
	inWindow     bool
	dateDistance time.Duration
	fieldCount   int
}

func (s candidateScore) better(o candidateScore) bool {
	if s.inWindow != o.inWindow {
		return s.inWindow
	}
	if s.dateDistance != o.dateDistance {
		return s.dateDistance < o.dateDistance
	}
	return s.fieldCount > o.fieldCount
}

// scoreCandidate rejects candidates outside the buffered gap window
// and computes the ordering key for the rest.
func scoreCandidate(c extract.CandidateRecord, g gap.Gap) (candidateScore, bool) {
	dep, err := c.DepartureInstant()
	if err != nil {
		return candidateScore{}, false
	}
	if g.PriorArrivalDate.IsZero() || g.NextDepartureDate.IsZero() {
		return candidateScore{}, false
	}

	windowStart := g.PriorArrivalDate.Add(-matchBuffer)
	windowEnd := g.NextDepartureDate.Add(matchBuffer)
	if dep.Before(windowStart) || dep.After(windowEnd) {
		return candidateScore{}, false
	}

	score := candidateScore{
		inWindow:   !dep.Before(g.PriorArrivalDate) && !dep.After(g.NextDepartureDate),
		fieldCount: c.FieldCount(),
	}
	// Distance from the nearer window edge; zero when inside.
	switch {
	case dep.Before(g.PriorArrivalDate):
		score.dateDistance = g.PriorArrivalDate.Sub(dep)
	case dep.After(g.NextDepartureDate):
		score.dateDistance = dep.Sub(g.NextDepartureDate)
	}
	return score, true
}
