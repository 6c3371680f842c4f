package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tripstitch/tripstitch/internal/itinerary"
)

// CandidateRecord is one travel record extracted from an email. It is
// not yet confirmed against any gap; only matched candidates become
// itinerary legs.
type CandidateRecord struct {
	DepartureCountry string `json:"departure_country"`
	DepartureCity    string `json:"departure_city"`
	DepartureDate    string `json:"departure_date"`
	DepartureTime    string `json:"departure_time"`
	ArrivalCountry   string `json:"arrival_country"`
	ArrivalCity      string `json:"arrival_city"`
	ArrivalDate      string `json:"arrival_date"`
	ArrivalTime      string `json:"arrival_time"`
	Notes            string `json:"notes"`
	SourceFile       string `json:"source_file"`
}

// FieldCount counts populated fields; used as an extraction-confidence
// proxy when breaking matcher ties.
func (c CandidateRecord) FieldCount() int {
	n := 0
	for _, f := range []string{
		c.DepartureCountry, c.DepartureCity, c.DepartureDate, c.DepartureTime,
		c.ArrivalCountry, c.ArrivalCity, c.ArrivalDate, c.ArrivalTime, c.Notes,
	} {
		if strings.TrimSpace(f) != "" && f != "Unknown" {
			n++
		}
	}
	return n
}

// DepartureInstant parses the candidate's departure date+time.
func (c CandidateRecord) DepartureInstant() (time.Time, error) {
	return c.toLeg().DepartureInstant()
}

// ArrivalInstant parses the candidate's arrival date+time.
func (c CandidateRecord) ArrivalInstant() (time.Time, error) {
	return c.toLeg().ArrivalInstant()
}

func (c CandidateRecord) toLeg() itinerary.TravelLeg {
	return itinerary.TravelLeg{
		DepartureDate: c.DepartureDate, DepartureTime: c.DepartureTime,
		ArrivalDate: c.ArrivalDate, ArrivalTime: c.ArrivalTime,
	}
}

// ToTravelLeg converts a matched candidate into a leg with its email
// as source attribution.
func (c CandidateRecord) ToTravelLeg() itinerary.TravelLeg {
	return itinerary.TravelLeg{
		DepartureCountry: c.DepartureCountry,
		DepartureCity:    c.DepartureCity,
		DepartureDate:    c.DepartureDate,
		DepartureTime:    c.DepartureTime,
		ArrivalCountry:   c.ArrivalCountry,
		ArrivalCity:      c.ArrivalCity,
		ArrivalDate:      c.ArrivalDate,
		ArrivalTime:      c.ArrivalTime,
		Notes:            c.Notes,
		SourceFile:       c.SourceFile,
	}
}

// ParseCandidates extracts the JSON array from a model response and
// unmarshals it. Models occasionally wrap the array in prose, so the
// outermost bracket pair is located first.
func ParseCandidates(content string) ([]CandidateRecord, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var records []CandidateRecord
	if err := json.Unmarshal([]byte(content[start:end+1]), &records); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return records, nil
}

// cleanField normalizes the placeholder strings models emit for
// unknown values.
func cleanField(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "Unknown", "unknown", "null", "N/A":
		return ""
	}
	return v
}

// ValidateCandidate cleans a raw record and enforces the schema:
// required location and date fields present, dates parseable, arrival
// not before departure. Failures are MalformedRecordError, never a
// silent partial record.
func ValidateCandidate(raw CandidateRecord, sourceFile string) (CandidateRecord, error) {
	c := raw
	c.DepartureCity = cleanField(c.DepartureCity)
	c.ArrivalCity = cleanField(c.ArrivalCity)
	c.DepartureDate = cleanField(c.DepartureDate)
	c.ArrivalDate = cleanField(c.ArrivalDate)
	c.DepartureTime = cleanField(c.DepartureTime)
	c.ArrivalTime = cleanField(c.ArrivalTime)
	c.Notes = cleanField(c.Notes)

	if c.SourceFile = cleanField(c.SourceFile); c.SourceFile == "" {
		c.SourceFile = sourceFile
	}

	c.DepartureCountry, _ = itinerary.NormalizeCountry(cleanField(c.DepartureCountry))
	c.ArrivalCountry, _ = itinerary.NormalizeCountry(cleanField(c.ArrivalCountry))

	if c.DepartureCity == "" || c.ArrivalCity == "" {
		return CandidateRecord{}, &itinerary.MalformedRecordError{
			Field: "city", Value: c.DepartureCity + "/" + c.ArrivalCity, Reason: "missing required city",
		}
	}
	if c.DepartureDate == "" {
		return CandidateRecord{}, &itinerary.MalformedRecordError{
			Field: "departure_date", Value: "", Reason: "missing required date",
		}
	}
	if c.ArrivalDate == "" {
		c.ArrivalDate = c.DepartureDate
	}

	dep, err := c.DepartureInstant()
	if err != nil {
		return CandidateRecord{}, &itinerary.MalformedRecordError{
			Field: "departure_date", Value: c.DepartureDate, Reason: "unparseable date",
		}
	}
	arr, err := c.ArrivalInstant()
	if err != nil {
		return CandidateRecord{}, &itinerary.MalformedRecordError{
			Field: "arrival_date", Value: c.ArrivalDate, Reason: "unparseable date",
		}
	}
	if arr.Before(dep) {
		return CandidateRecord{}, &itinerary.MalformedRecordError{
			Field: "arrival_date", Value: c.ArrivalDate, Reason: "arrival precedes departure",
		}
	}

	return c, nil
}
