// Package itinerary holds the travel-leg data model and the ordered
// leg store. Legs are loaded from CSV, kept sorted by departure
// instant, and written back out with a timestamped filename.
package itinerary

import (
	"fmt"
	"time"
)

// SourceOriginal marks legs that came from the input itinerary rather
// than from extracted email evidence.
const SourceOriginal = "Original"

// DateFormat is the wire format for leg dates.
const DateFormat = "2006-01-02"

// TimeFormat is the wire format for leg times. Empty times are legal.
const TimeFormat = "15:04"

// TravelLeg is one journey segment.
type TravelLeg struct {
	DepartureCountry string
	DepartureCity    string
	DepartureDate    string // YYYY-MM-DD
	DepartureTime    string // HH:MM or empty
	ArrivalCountry   string
	ArrivalCity      string
	ArrivalDate      string
	ArrivalTime      string
	Notes            string
	SourceFile       string // SourceOriginal or an email filename
}

// MalformedRecordError marks a row or candidate whose dates are
// unparseable or whose arrival precedes its departure. The offending
// record is dropped and processing continues.
type MalformedRecordError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %s %q: %s", e.Field, e.Value, e.Reason)
}

// combineInstant merges a date and optional time into a single instant.
// An empty or unparseable time means midnight, so untimed legs sort
// before timed legs on the same date.
func combineInstant(date, clock string) (time.Time, error) {
	d, err := time.Parse(DateFormat, date)
	if err != nil {
		return time.Time{}, err
	}
	if clock == "" {
		return d, nil
	}
	t, err := time.Parse(TimeFormat, clock)
	if err != nil {
		return d, nil
	}
	return d.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// DepartureInstant returns the leg's departure date+time.
func (l TravelLeg) DepartureInstant() (time.Time, error) {
	ts, err := combineInstant(l.DepartureDate, l.DepartureTime)
	if err != nil {
		return time.Time{}, &MalformedRecordError{Field: "departure_date", Value: l.DepartureDate, Reason: "unparseable date"}
	}
	return ts, nil
}

// ArrivalInstant returns the leg's arrival date+time.
func (l TravelLeg) ArrivalInstant() (time.Time, error) {
	ts, err := combineInstant(l.ArrivalDate, l.ArrivalTime)
	if err != nil {
		return time.Time{}, &MalformedRecordError{Field: "arrival_date", Value: l.ArrivalDate, Reason: "unparseable date"}
	}
	return ts, nil
}

// Validate checks the departure-before-arrival invariant.
func (l TravelLeg) Validate() error {
	dep, err := l.DepartureInstant()
	if err != nil {
		return err
	}
	arr, err := l.ArrivalInstant()
	if err != nil {
		return err
	}
	if arr.Before(dep) {
		return &MalformedRecordError{
			Field:  "arrival_date",
			Value:  l.ArrivalDate,
			Reason: fmt.Sprintf("arrival precedes departure %s", l.DepartureDate),
		}
	}
	return nil
}

// sortKey returns the instant used for chronological ordering.
// Legs with unparseable dates sort to the front so they surface early.
func (l TravelLeg) sortKey() time.Time {
	ts, err := l.DepartureInstant()
	if err != nil {
		return time.Time{}
	}
	return ts
}
