package gap

import (
	"fmt"
	"sort"
	"time"

	"github.com/tripstitch/tripstitch/internal/itinerary"
)

// IncongruentEvent flags legs that look like a missed flight or a
// duplicate entry: multiple departures from the same city on the same
// date, or departures from the same place with times under two hours
// apart. Reported only, never auto-resolved.
type IncongruentEvent struct {
	Type        string // "multiple_departures" or "overlapping_times"
	City        string
	Date        string
	Indexes     []int
	Description string
}

const overlapThreshold = 2 * time.Hour

// DetectIncongruentEvents scans the leg sequence for suspicious
// departure groups.
func DetectIncongruentEvents(legs []itinerary.TravelLeg) []IncongruentEvent {
	var events []IncongruentEvent

	type groupKey struct {
		city string
		date string
	}
	groups := map[groupKey][]int{}
	for i, leg := range legs {
		key := groupKey{city: itinerary.ExtractCityName(leg.DepartureCity), date: leg.DepartureDate}
		groups[key] = append(groups[key], i)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].city < keys[j].city
	})

	for _, k := range keys {
		idxs := groups[k]
		if len(idxs) < 2 {
			continue
		}
		events = append(events, IncongruentEvent{
			Type:        "multiple_departures",
			City:        k.city,
			Date:        k.date,
			Indexes:     idxs,
			Description: fmt.Sprintf("multiple departures from %s on %s (%d legs)", k.city, k.date, len(idxs)),
		})

		// Within the group, flag timed departures under two hours apart.
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				la, lb := legs[idxs[a]], legs[idxs[b]]
				if la.DepartureTime == "" || lb.DepartureTime == "" {
					continue
				}
				ta, errA := time.Parse(itinerary.TimeFormat, la.DepartureTime)
				tb, errB := time.Parse(itinerary.TimeFormat, lb.DepartureTime)
				if errA != nil || errB != nil {
					continue
				}
				diff := ta.Sub(tb)
				if diff < 0 {
					diff = -diff
				}
				if diff < overlapThreshold {
					events = append(events, IncongruentEvent{
						Type:    "overlapping_times",
						City:    k.city,
						Date:    k.date,
						Indexes: []int{idxs[a], idxs[b]},
						Description: fmt.Sprintf("overlapping departures from %s on %s at %s and %s",
							k.city, k.date, la.DepartureTime, lb.DepartureTime),
					})
				}
			}
		}
	}

	return events
}
