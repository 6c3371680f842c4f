package itinerary

import "testing"

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"alias UK", "UK", "GB", true},
		{"full name", "United Kingdom", "GB", true},
		{"lowercase alias", "uk", "GB", true},
		{"iso passthrough", "PH", "PH", true},
		{"iso lowercase", "my", "MY", true},
		{"usa", "USA", "US", true},
		{"unknown stays raw", "Atlantis", "Atlantis", false},
		{"empty", "", "", false},
		{"whitespace", "  GB  ", "GB", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeCountry(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeCountry(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeCountryIdempotent(t *testing.T) {
	inputs := []string{"UK", "United Kingdom", "GB", "usa", "Thailand", "Atlantis"}
	for _, in := range inputs {
		once, _ := NormalizeCountry(in)
		twice, _ := NormalizeCountry(once)
		if once != twice {
			t.Errorf("NormalizeCountry not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestExtractCityName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Kuala Lumpur (KUL)", "Kuala Lumpur"},
		{"Kuala Lumpur (KUL) - Malaysia", "Kuala Lumpur"},
		{"London, UK", "London"},
		{"Manila", "Manila"},
		{"Tivat (TIV)", "Tivat"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractCityName(tt.input); got != tt.want {
			t.Errorf("ExtractCityName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSameCity(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"London (LHR)", "london", true},
		{"Kuala Lumpur (KUL) - Malaysia", "Kuala Lumpur", true},
		{"Manila", "Cebu", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := SameCity(tt.a, tt.b); got != tt.want {
			t.Errorf("SameCity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
