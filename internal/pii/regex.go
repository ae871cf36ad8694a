package pii

import "regexp"

// Canonical entity type identifiers produced by the built-in detectors.
const (
	EntityEmail      = "EMAIL"
	EntityPhone      = "PHONE"
	EntityPerson     = "PERSON"
	EntityIPAddress  = "IP_ADDRESS"
	EntityCreditCard = "CREDIT_CARD"
	EntitySSN        = "SSN"
)

// rule pairs an entity type with its compiled pattern.
type rule struct {
	entityType string
	pattern    *regexp.Regexp
	confidence float64
}

var baseRules = []rule{
	{EntityEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), 0.9},
	{EntityPhone, regexp.MustCompile(`\+?\d[\d\-\s]{6,}\d`), 0.7},
	{EntityPerson, regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)+\b`), 0.5},
	{EntityIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0.8},
	{EntityCreditCard, regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`), 0.8},
	{EntitySSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.9},
}

// RegexDetector is the default pattern-based detector. It covers the six
// canonical entity types: EMAIL, PHONE, PERSON, IP_ADDRESS, CREDIT_CARD and
// SSN.
//
// Known limitations, kept for reproducibility rather than fixed silently:
// the IP pattern checks dotted-quad shape only (999.999.999.999 matches),
// and PERSON is a two-or-more-capitalized-words heuristic that both over-
// and under-matches on anything outside simple Western two-token names.
type RegexDetector struct {
	rules []rule
}

// NewRegexDetector returns a detector for the canonical entity types.
func NewRegexDetector() *RegexDetector {
	return &RegexDetector{rules: baseRules}
}

// Name implements Detector.
func (d *RegexDetector) Name() string { return "regex" }

// Detect implements Detector. Matches are emitted grouped by rule, in rule
// declaration order; each group is in left-to-right text order.
func (d *RegexDetector) Detect(text string) []Match {
	return detectWithRules(text, d.rules, d.Name())
}

func detectWithRules(text string, rules []rule, detectorName string) []Match {
	var matches []Match
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{
				EntityType: r.entityType,
				Start:      loc[0],
				End:        loc[1],
				Text:       text[loc[0]:loc[1]],
				Confidence: r.confidence,
				Detector:   detectorName,
			})
		}
	}
	return matches
}
