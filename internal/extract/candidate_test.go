package extract

import (
	"errors"
	"testing"

	"github.com/tripstitch/tripstitch/internal/itinerary"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"departure_city":"Manila"}]`, 1, false},
		{"prose wrapped", "Here are the records:\n```json\n[{\"departure_city\":\"Manila\"}]\n```\nDone.", 1, false},
		{"empty array", `[]`, 0, false},
		{"no array", "I could not find any travel records.", 0, true},
		{"broken json", `[{"departure_city":}]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidates(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("got %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestValidateCandidate(t *testing.T) {
	valid := CandidateRecord{
		DepartureCountry: "Philippines", DepartureCity: "Manila", DepartureDate: "2023-02-06",
		ArrivalCountry: "MY", ArrivalCity: "Kuala Lumpur", ArrivalDate: "2023-02-06",
	}

	t.Run("normalizes countries", func(t *testing.T) {
		c, err := ValidateCandidate(valid, "a.eml")
		if err != nil {
			t.Fatal(err)
		}
		if c.DepartureCountry != "PH" {
			t.Errorf("DepartureCountry = %q, want PH", c.DepartureCountry)
		}
		if c.SourceFile != "a.eml" {
			t.Errorf("SourceFile = %q", c.SourceFile)
		}
	})

	t.Run("defaults arrival date", func(t *testing.T) {
		c := valid
		c.ArrivalDate = ""
		got, err := ValidateCandidate(c, "a.eml")
		if err != nil {
			t.Fatal(err)
		}
		if got.ArrivalDate != "2023-02-06" {
			t.Errorf("ArrivalDate = %q", got.ArrivalDate)
		}
	})

	t.Run("cleans unknown placeholders", func(t *testing.T) {
		c := valid
		c.Notes = "Unknown"
		c.DepartureTime = "N/A"
		got, err := ValidateCandidate(c, "a.eml")
		if err != nil {
			t.Fatal(err)
		}
		if got.Notes != "" || got.DepartureTime != "" {
			t.Errorf("placeholders not cleaned: %+v", got)
		}
	})

	rejects := []struct {
		name   string
		mutate func(*CandidateRecord)
	}{
		{"missing departure city", func(c *CandidateRecord) { c.DepartureCity = "" }},
		{"placeholder city", func(c *CandidateRecord) { c.ArrivalCity = "Unknown" }},
		{"missing departure date", func(c *CandidateRecord) { c.DepartureDate = "" }},
		{"unparseable date", func(c *CandidateRecord) { c.DepartureDate = "Feb 6" }},
		{"inverted", func(c *CandidateRecord) { c.ArrivalDate = "2023-02-05" }},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			_, err := ValidateCandidate(c, "a.eml")
			var malformed *itinerary.MalformedRecordError
			if !errors.As(err, &malformed) {
				t.Errorf("err = %v, want MalformedRecordError", err)
			}
		})
	}
}

func TestFieldCount(t *testing.T) {
	c := CandidateRecord{DepartureCity: "Manila", ArrivalCity: "Kuala Lumpur", DepartureDate: "2023-02-06"}
	if got := c.FieldCount(); got != 3 {
		t.Errorf("FieldCount = %d, want 3", got)
	}
	c.Notes = "Unknown"
	if got := c.FieldCount(); got != 3 {
		t.Errorf("FieldCount with placeholder = %d, want 3", got)
	}
}
