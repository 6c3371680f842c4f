// Package filter narrows the email corpus to a tractable working set
// before extraction. The keyword pass cuts the corpus roughly
// twentyfold; the temporal pass then drops anything outside every
// gap's evidence window. Both passes are pure functions of their
// inputs.
package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tripstitch/tripstitch/internal/gap"
	"github.com/tripstitch/tripstitch/internal/itinerary"
	"github.com/tripstitch/tripstitch/internal/mailbox"
)

// defaultTerms is the fallback vocabulary when no vocabulary file is
// available.
var defaultTerms = []string{
	"flight", "airline", "airport", "departure", "arrival", "boarding",
	"ticket", "booking", "reservation", "itinerary", "hotel", "travel",
	"trip", "journey", "vacation", "holiday", "tour", "tourism",
}

// Vocabulary is the externally maintained list of travel terms.
// Reload picks up file edits between runs without a code change.
type Vocabulary struct {
	mu    sync.RWMutex
	path  string
	terms []string
}

// LoadVocabulary reads a vocabulary file: one lower-cased term per
// line, blank lines and '#' comments skipped. A missing file yields
// the built-in fallback terms.
func LoadVocabulary(path string) (*Vocabulary, error) {
	v := &Vocabulary{path: path}
	if err := v.Reload(); err != nil {
		return nil, err
	}
	return v, nil
}

// Reload re-reads the vocabulary file.
func (v *Vocabulary) Reload() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := os.Open(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			v.terms = append([]string(nil), defaultTerms...)
			return nil
		}
		return fmt.Errorf("opening vocabulary %s: %w", v.path, err)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading vocabulary %s: %w", v.path, err)
	}
	v.terms = terms
	return nil
}

// Terms returns a copy of the current vocabulary.
func (v *Vocabulary) Terms() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.terms...)
}

// GapLocationTerms derives extra search terms from the open gaps:
// the four location names plus colloquial country-name variants, so
// location-specific emails without generic travel words still match.
func GapLocationTerms(gaps []gap.Gap) []string {
	seen := map[string]struct{}{}
	var terms []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, g := range gaps {
		add(g.PriorArrivalCity)
		add(g.NextDepartureCity)
		add(g.PriorArrivalCountry)
		add(g.NextDepartureCountry)
		for _, v := range itinerary.CountryVariants(g.PriorArrivalCountry) {
			add(v)
		}
		for _, v := range itinerary.CountryVariants(g.NextDepartureCountry) {
			add(v)
		}
	}
	return terms
}

// KeywordFilter retains documents containing at least one active term
// in subject, sender, or body (case-insensitive substring match).
type KeywordFilter struct {
	vocab *Vocabulary
}

// NewKeywordFilter wires the filter to a vocabulary. The vocabulary is
// passed in explicitly; there is no ambient shared state.
func NewKeywordFilter(vocab *Vocabulary) *KeywordFilter {
	return &KeywordFilter{vocab: vocab}
}

// Apply returns the subset of docs matching the vocabulary plus the
// gap location terms for this run. Adding terms can only grow the
// retained set; for fixed inputs the result is deterministic.
func (f *KeywordFilter) Apply(docs []mailbox.EmailDocument, gaps []gap.Gap) []mailbox.EmailDocument {
	terms := append(f.vocab.Terms(), GapLocationTerms(gaps)...)

	var kept []mailbox.EmailDocument
	for _, doc := range docs {
		subject := strings.ToLower(doc.Subject)
		sender := strings.ToLower(doc.Sender)
		body := strings.ToLower(doc.Body)

		for _, term := range terms {
			if strings.Contains(subject, term) || strings.Contains(sender, term) || strings.Contains(body, term) {
				kept = append(kept, doc)
				break
			}
		}
	}
	return kept
}
