// Package gap detects geographic discontinuities between consecutive
// travel legs and flags incongruent departure groups. Analysis is a
// pure function of the sorted leg sequence.
package gap

import (
	"fmt"
	"strings"
	"time"

	"github.com/tripstitch/tripstitch/internal/itinerary"
)

// Kind classifies a gap by whether the country changed.
type Kind string

const (
	// KindCountry means arrival and next-departure countries differ.
	// Critical severity: these matter for visa day counting.
	KindCountry Kind = "COUNTRY"
	// KindCity means countries match but cities differ. Moderate
	// severity: often a car lift or local transport.
	KindCity Kind = "CITY"
)

// Severity buckets gaps for reporting.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
)

// Gap is a discontinuity between leg PriorIndex and leg NextIndex.
type Gap struct {
	Number     int // 1-based, in itinerary order
	PriorIndex int
	NextIndex  int

	Kind     Kind
	Severity Severity
	// LowConfidence is set when either country field failed ISO
	// normalization, so the COUNTRY/CITY classification may be wrong.
	LowConfidence bool

	PriorArrivalCity     string
	PriorArrivalCountry  string
	NextDepartureCity    string
	NextDepartureCountry string

	PriorArrivalDate  time.Time
	NextDepartureDate time.Time
	DaysBetween       int
}

// Window returns the evidence search window for this gap: a lookback
// before the prior arrival for advance bookings and a small buffer
// after the next departure for late confirmations.
func (g Gap) Window(lookbackMonths, lookaheadDays int) (time.Time, time.Time) {
	return g.PriorArrivalDate.AddDate(0, -lookbackMonths, 0),
		g.NextDepartureDate.AddDate(0, 0, lookaheadDays)
}

func (g Gap) String() string {
	return fmt.Sprintf("gap #%d (%s): %s (%s) -> %s (%s) [%d days]",
		g.Number, g.Kind,
		g.PriorArrivalCity, g.PriorArrivalCountry,
		g.NextDepartureCity, g.NextDepartureCountry,
		g.DaysBetween)
}

// DataOrderingError reports that the input leg sequence was not
// chronologically sorted. The caller must sort and retry; sorting is
// deliberately not performed here so ordering bugs surface early.
type DataOrderingError struct {
	Index int
}

func (e *DataOrderingError) Error() string {
	return fmt.Sprintf("leg sequence not chronologically sorted at index %d", e.Index)
}

// Analyze scans a chronologically sorted leg sequence and emits one Gap
// per adjacent pair whose arrival city differs from the next departure
// city. Country comparison happens after ISO alpha-2 normalization.
func Analyze(legs []itinerary.TravelLeg) ([]Gap, error) {
	for i := 1; i < len(legs); i++ {
		prev, err := legs[i-1].DepartureInstant()
		if err != nil {
			continue
		}
		cur, err := legs[i].DepartureInstant()
		if err != nil {
			continue
		}
		if cur.Before(prev) {
			return nil, &DataOrderingError{Index: i}
		}
	}

	var gaps []Gap
	for i := 0; i+1 < len(legs); i++ {
		cur, next := legs[i], legs[i+1]

		arrivalCity := itinerary.ExtractCityName(cur.ArrivalCity)
		departureCity := itinerary.ExtractCityName(next.DepartureCity)
		if itinerary.SameCity(arrivalCity, departureCity) {
			continue
		}

		arrCountry, arrOK := itinerary.NormalizeCountry(cur.ArrivalCountry)
		depCountry, depOK := itinerary.NormalizeCountry(next.DepartureCountry)

		g := Gap{
			Number:               len(gaps) + 1,
			PriorIndex:           i,
			NextIndex:            i + 1,
			PriorArrivalCity:     arrivalCity,
			PriorArrivalCountry:  arrCountry,
			NextDepartureCity:    departureCity,
			NextDepartureCountry: depCountry,
			LowConfidence:        !arrOK || !depOK,
		}

		if !strings.EqualFold(arrCountry, depCountry) {
			g.Kind = KindCountry
			g.Severity = SeverityCritical
		} else {
			g.Kind = KindCity
			g.Severity = SeverityModerate
		}

		if arr, err := cur.ArrivalInstant(); err == nil {
			g.PriorArrivalDate = arr
		}
		if dep, err := next.DepartureInstant(); err == nil {
			g.NextDepartureDate = dep
		}
		if !g.PriorArrivalDate.IsZero() && !g.NextDepartureDate.IsZero() {
			g.DaysBetween = int(g.NextDepartureDate.Sub(g.PriorArrivalDate).Hours() / 24)
		}

		gaps = append(gaps, g)
	}

	return gaps, nil
}
