package extract

import (
	"fmt"
	"strings"

	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/mailbox"
)

const promptSchema = `Return ONLY a JSON array of travel entries in this format:
[
  {
    "departure_country": "XX",
    "departure_city": "City Name",
    "departure_date": "YYYY-MM-DD",
    "departure_time": "HH:MM",
    "arrival_country": "XX",
    "arrival_city": "City Name",
    "arrival_date": "YYYY-MM-DD",
    "arrival_time": "HH:MM",
    "notes": "Description",
    "source_file": "filename.eml"
  }
]

IMPORTANT COUNTRY CODE REQUIREMENTS:
- Use ISO 3166-1 alpha-2 country codes (2-letter codes only)
- Examples: GB (United Kingdom), US (United States), FR (France), DE (Germany)
- Common mappings: UK -> GB, United Kingdom -> GB, USA -> US, United States -> US
- Do NOT use full country names or 3-letter codes

If no travel information is found, return an empty array [].`

// GapsContext renders the open gaps as prompt context so the model
// knows which connections the run is hunting for.
func GapsContext(gaps []gap.Gap) string {
	var b strings.Builder
	b.WriteString("GAPS TO FILL:\n")
	for _, g := range gaps {
		fmt.Fprintf(&b, "GAP #%d (%s): %s (%s) -> %s (%s) [%d days]\n",
			g.Number, g.Kind,
			g.PriorArrivalCity, g.PriorArrivalCountry,
			g.NextDepartureCity, g.NextDepartureCountry,
			g.DaysBetween)
	}
	return b.String()
}

// BuildPrompt assembles the extraction prompt for one email batch:
// gap context, extraction instructions, the batch's emails with bodies
// truncated to bodyBudget characters, and the output schema.
func BuildPrompt(batch []mailbox.EmailDocument, gaps []gap.Gap, bodyBudget int) string {
	var b strings.Builder
	b.WriteString(GapsContext(gaps))
	b.WriteString(`
Analyze the following emails and extract any travel information that could fill these gaps. Look for:
- Flight bookings, confirmations, itineraries
- Hotel reservations and check-ins
- Car rentals, train tickets, bus bookings
- Car lifts, informal transportation
- Any travel between the gap locations
- Multiple flight details in single emails (connected flights, round trips, multi-city itineraries)

If an email contains multiple flight segments (outbound and return flights, connected flights, layovers), extract ALL of them as separate entries.

EMAILS TO ANALYZE:
`)
	for _, doc := range batch {
		fmt.Fprintf(&b, "\n--- EMAIL: %s ---\n", doc.SourceFile)
		if doc.HasDate() {
			fmt.Fprintf(&b, "Date: %s\n", doc.Date.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "Subject: %s\n", doc.Subject)
		fmt.Fprintf(&b, "From: %s\n", doc.Sender)
		fmt.Fprintf(&b, "Content: %s\n", truncateBody(doc.Body, bodyBudget))
	}
	b.WriteString("\n")
	b.WriteString(promptSchema)
	return b.String()
}

// truncateBody caps a body at budget characters to keep batch prompts
// inside the context window.
func truncateBody(body string, budget int) string {
	if budget <= 0 || len(body) <= budget {
		return body
	}
	return body[:budget] + "..."
}
