package gap

import (
	"testing"

	"github.com/tripstitch/tripstitch/internal/itinerary"
)

func TestDetectIncongruentEvents(t *testing.T) {
	legs := []itinerary.TravelLeg{
		{DepartureCity: "London", DepartureDate: "2023-01-10", DepartureTime: "08:00"},
		{DepartureCity: "London (LHR)", DepartureDate: "2023-01-10", DepartureTime: "09:15"},
		{DepartureCity: "Manila", DepartureDate: "2023-02-06"},
	}

	events := DetectIncongruentEvents(legs)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	if events[0].Type != "multiple_departures" {
		t.Errorf("event 0 type = %q", events[0].Type)
	}
	if events[0].City != "London" || len(events[0].Indexes) != 2 {
		t.Errorf("event 0 = %+v", events[0])
	}

	// 08:00 and 09:15 are 75 minutes apart, under the threshold.
	if events[1].Type != "overlapping_times" {
		t.Errorf("event 1 type = %q", events[1].Type)
	}
}

func TestDetectIncongruentEventsCleanSequence(t *testing.T) {
	legs := []itinerary.TravelLeg{
		{DepartureCity: "London", DepartureDate: "2023-01-10", DepartureTime: "08:00"},
		{DepartureCity: "Manila", DepartureDate: "2023-02-06", DepartureTime: "10:00"},
	}
	if events := DetectIncongruentEvents(legs); len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestDetectIncongruentEventsWideSpacing(t *testing.T) {
	// Same city and date but times three hours apart: grouped but not
	// overlapping.
	legs := []itinerary.TravelLeg{
		{DepartureCity: "London", DepartureDate: "2023-01-10", DepartureTime: "06:00"},
		{DepartureCity: "London", DepartureDate: "2023-01-10", DepartureTime: "09:00"},
	}
	events := DetectIncongruentEvents(legs)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != "multiple_departures" {
		t.Errorf("type = %q", events[0].Type)
	}
}
