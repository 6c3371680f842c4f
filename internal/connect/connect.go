// Package connect annotates a saved itinerary with next-leg match
// columns: for each leg, whether its arrival country and city equal the
// following leg's departure. Useful as a quick visual audit of a merged
// file.
package connect

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/tripstitch/tripstitch/internal/itinerary"
)

const (
	MatchYes = "yes"
	MatchNo  = "no"
	MatchNA  = "n/a" // last row has nothing to compare against
)

// Annotation is the per-leg connection verdict.
type Annotation struct {
	CountryMatch string
	CityMatch    string
}

// Summary counts matches across the itinerary.
type Summary struct {
	CountryMatches int
	CityMatches    int
	Comparisons    int
}

// Analyze computes the next-leg annotation for every leg. The last leg
// always gets n/a.
func Analyze(legs []itinerary.TravelLeg) ([]Annotation, Summary) {
	annotations := make([]Annotation, len(legs))
	var sum Summary

	for i := range legs {
		if i == len(legs)-1 {
			annotations[i] = Annotation{CountryMatch: MatchNA, CityMatch: MatchNA}
			continue
		}
		sum.Comparisons++
		next := legs[i+1]

		a := Annotation{CountryMatch: MatchNo, CityMatch: MatchNo}
		if legs[i].ArrivalCountry != "" && next.DepartureCountry != "" &&
			strings.EqualFold(legs[i].ArrivalCountry, next.DepartureCountry) {
			a.CountryMatch = MatchYes
			sum.CountryMatches++
		}
		if itinerary.SameCity(legs[i].ArrivalCity, next.DepartureCity) {
			a.CityMatch = MatchYes
			sum.CityMatches++
		}
		annotations[i] = a
	}
	return annotations, sum
}

// AnnotateFile reads a saved itinerary CSV, appends the two match
// columns, and writes <name>_with_connections.csv next to it.
func AnnotateFile(path string) (string, Summary, error) {
	store, _, err := itinerary.Load(path)
	if err != nil {
		return "", Summary{}, err
	}
	legs := store.Legs()

	annotations, sum := Analyze(legs)

	outPath := strings.TrimSuffix(path, ".csv") + "_with_connections.csv"
	f, err := os.Create(outPath)
	if err != nil {
		return "", sum, fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string{}, itinerary.Columns...), "next_country_match", "next_city_match")
	if err := w.Write(header); err != nil {
		return "", sum, err
	}
	for i, leg := range legs {
		row := []string{
			leg.DepartureCountry, leg.DepartureCity, leg.DepartureDate, leg.DepartureTime,
			leg.ArrivalCountry, leg.ArrivalCity, leg.ArrivalDate, leg.ArrivalTime,
			leg.Notes, leg.SourceFile,
			annotations[i].CountryMatch, annotations[i].CityMatch,
		}
		if err := w.Write(row); err != nil {
			return "", sum, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", sum, err
	}
	return outPath, sum, nil
}
