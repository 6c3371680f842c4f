package itinerary

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Columns is the persisted CSV layout, in order.
var Columns = []string{
	"departure_country", "departure_city", "departure_date", "departure_time",
	"arrival_country", "arrival_city", "arrival_date", "arrival_time",
	"notes", "source_file",
}

// LoadResult reports what happened while loading an itinerary file.
type LoadResult struct {
	RowsRead   int
	Normalized int // rows whose country codes changed during normalization
	Dropped    []error
}

// Store is the in-memory ordered collection of travel legs. The legs
// slice is always sorted by departure instant after Load, Sort, or
// Insert; mutation happens only through this type.
type Store struct {
	legs []TravelLeg
}

// NewStore wraps an existing leg slice without sorting it. Callers that
// need the chronological invariant must call Sort.
func NewStore(legs []TravelLeg) *Store {
	return &Store{legs: legs}
}

// Load reads a CSV itinerary, normalizes country codes, drops rows with
// unparseable dates, and sorts the remainder chronologically.
func Load(path string) (*Store, *LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening itinerary %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing itinerary %s: %w", path, err)
	}
	if len(records) < 2 {
		return &Store{}, &LoadResult{}, nil
	}

	header := map[string]int{}
	for i, col := range records[0] {
		header[strings.TrimSpace(col)] = i
	}
	field := func(row []string, name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	result := &LoadResult{}
	s := &Store{}
	for _, row := range records[1:] {
		result.RowsRead++
		leg := TravelLeg{
			DepartureCountry: field(row, "departure_country"),
			DepartureCity:    field(row, "departure_city"),
			DepartureDate:    field(row, "departure_date"),
			DepartureTime:    field(row, "departure_time"),
			ArrivalCountry:   field(row, "arrival_country"),
			ArrivalCity:      field(row, "arrival_city"),
			ArrivalDate:      field(row, "arrival_date"),
			ArrivalTime:      field(row, "arrival_time"),
			Notes:            field(row, "notes"),
			SourceFile:       field(row, "source_file"),
		}
		if leg.SourceFile == "" {
			leg.SourceFile = SourceOriginal
		}

		depNorm, _ := NormalizeCountry(leg.DepartureCountry)
		arrNorm, _ := NormalizeCountry(leg.ArrivalCountry)
		if depNorm != leg.DepartureCountry || arrNorm != leg.ArrivalCountry {
			result.Normalized++
		}
		leg.DepartureCountry = depNorm
		leg.ArrivalCountry = arrNorm

		if _, err := leg.DepartureInstant(); err != nil {
			result.Dropped = append(result.Dropped, err)
			continue
		}
		s.legs = append(s.legs, leg)
	}

	s.Sort()
	return s, result, nil
}

// Legs returns the ordered leg sequence. Callers must not mutate it.
func (s *Store) Legs() []TravelLeg {
	return s.legs
}

// Len returns the number of legs held.
func (s *Store) Len() int {
	return len(s.legs)
}

// Sort re-establishes chronological order by departure instant. The
// sort is stable so equal-instant legs keep their load order.
func (s *Store) Sort() {
	sort.SliceStable(s.legs, func(i, j int) bool {
		return s.legs[i].sortKey().Before(s.legs[j].sortKey())
	})
}

// IsSorted reports whether the chronological invariant currently holds.
func (s *Store) IsSorted() bool {
	for i := 1; i < len(s.legs); i++ {
		if s.legs[i].sortKey().Before(s.legs[i-1].sortKey()) {
			return false
		}
	}
	return true
}

// Insert places a leg at its chronologically correct position and
// returns the index it landed at.
func (s *Store) Insert(leg TravelLeg) int {
	key := leg.sortKey()
	idx := sort.Search(len(s.legs), func(i int) bool {
		return key.Before(s.legs[i].sortKey())
	})
	s.legs = append(s.legs, TravelLeg{})
	copy(s.legs[idx+1:], s.legs[idx:])
	s.legs[idx] = leg
	return idx
}

// RemoveAt deletes the leg at idx. Used to roll back a rejected insert.
func (s *Store) RemoveAt(idx int) {
	if idx < 0 || idx >= len(s.legs) {
		return
	}
	s.legs = append(s.legs[:idx], s.legs[idx+1:]...)
}

// OutputFilename builds the timestamped name the completed itinerary is
// saved under, matching the input file's naming convention.
func OutputFilename(now time.Time) string {
	return fmt.Sprintf("all-travel-%s.csv", now.Format("20060102-1504"))
}

// Save writes the legs to a CSV file in chronological order.
func (s *Store) Save(path string) error {
	s.Sort()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, leg := range s.legs {
		row := []string{
			leg.DepartureCountry, leg.DepartureCity, leg.DepartureDate, leg.DepartureTime,
			leg.ArrivalCountry, leg.ArrivalCity, leg.ArrivalDate, leg.ArrivalTime,
			leg.Notes, leg.SourceFile,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
