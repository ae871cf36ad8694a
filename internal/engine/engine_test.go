package engine

import (
	"reflect"
	"testing"

	"github.com/promptveil/promptveil/internal/pii"
	"github.com/promptveil/promptveil/internal/policy"
)

func testPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.Load("default_pii", "")
	if err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return p
}

func match(entityType string, start, end int, text string) pii.Match {
	return pii.Match{EntityType: entityType, Start: start, End: end, Text: text[start:end]}
}

func TestAnonymizeRoundTrip(t *testing.T) {
	text := "Mail a@b.co or c@d.co, call 555-123-4567."
	matches := []pii.Match{
		match("EMAIL", 5, 11, text),
		match("EMAIL", 15, 21, text),
		match("PHONE", 28, 40, text),
	}

	e := New()
	anonymized, mapping := e.Anonymize(text, matches, testPolicy(t))

	want := "Mail [EMAIL_1] or [EMAIL_2], call [PHONE_1]."
	if anonymized != want {
		t.Errorf("anonymized = %q, want %q", anonymized, want)
	}
	if len(mapping) != 3 {
		t.Errorf("mapping has %d entries, want 3", len(mapping))
	}
	if mapping["[EMAIL_1]"] != "a@b.co" || mapping["[EMAIL_2]"] != "c@d.co" {
		t.Errorf("email mapping wrong: %v", mapping)
	}

	if restored := e.Deanonymize(anonymized, mapping); restored != text {
		t.Errorf("round trip failed:\n got %q\nwant %q", restored, text)
	}
}

func TestAnonymizeDeterministic(t *testing.T) {
	text := "a@b.co and 555-123-4567 and c@d.co"
	matches := []pii.Match{
		match("PHONE", 11, 23, text),
		match("EMAIL", 0, 6, text),
		match("EMAIL", 28, 34, text),
	}

	e := New()
	p := testPolicy(t)

	first, firstMapping := e.Anonymize(text, matches, p)
	for i := 0; i < 10; i++ {
		got, gotMapping := e.Anonymize(text, matches, p)
		if got != first || !reflect.DeepEqual(gotMapping, firstMapping) {
			t.Fatalf("run %d differs: %q vs %q", i, got, first)
		}
	}
}

func TestAnonymizePolicyScoping(t *testing.T) {
	// default_pii has no IP_ADDRESS entry; the span must pass through.
	text := "host 10.0.0.1 owner a@b.co"
	matches := []pii.Match{
		match("IP_ADDRESS", 5, 13, text),
		match("EMAIL", 20, 26, text),
	}

	anonymized, mapping := New().Anonymize(text, matches, testPolicy(t))

	want := "host 10.0.0.1 owner [EMAIL_1]"
	if anonymized != want {
		t.Errorf("anonymized = %q, want %q", anonymized, want)
	}
	if len(mapping) != 1 {
		t.Errorf("mapping = %v, want only the email entry", mapping)
	}
}

func TestAnonymizeCountersPerEntityType(t *testing.T) {
	text := "a@b.co 111-222-3333 c@d.co 444-555-6666"
	matches := []pii.Match{
		match("EMAIL", 0, 6, text),
		match("PHONE", 7, 19, text),
		match("EMAIL", 20, 26, text),
		match("PHONE", 27, 39, text),
	}

	anonymized, _ := New().Anonymize(text, matches, testPolicy(t))

	want := "[EMAIL_1] [PHONE_1] [EMAIL_2] [PHONE_2]"
	if anonymized != want {
		t.Errorf("anonymized = %q, want %q", anonymized, want)
	}
}

func TestAnonymizeCountersRestartPerCall(t *testing.T) {
	text := "a@b.co"
	matches := []pii.Match{match("EMAIL", 0, 6, text)}
	e := New()
	p := testPolicy(t)

	for i := 0; i < 3; i++ {
		anonymized, _ := e.Anonymize(text, matches, p)
		if anonymized != "[EMAIL_1]" {
			t.Fatalf("call %d: anonymized = %q, counters leaked between calls", i, anonymized)
		}
	}
}

func TestAnonymizeNoMatches(t *testing.T) {
	e := New()
	text := "nothing sensitive here"
	anonymized, mapping := e.Anonymize(text, nil, testPolicy(t))
	if anonymized != text {
		t.Errorf("anonymized = %q, want input unchanged", anonymized)
	}
	if len(mapping) != 0 {
		t.Errorf("mapping = %v, want empty", mapping)
	}
}

func TestAnonymizeMatchAtEndOfText(t *testing.T) {
	text := "reach me at a@b.co"
	matches := []pii.Match{match("EMAIL", 12, 18, text)}

	anonymized, _ := New().Anonymize(text, matches, testPolicy(t))
	if anonymized != "reach me at [EMAIL_1]" {
		t.Errorf("anonymized = %q", anonymized)
	}
}

func TestAnonymizeUnsortedInput(t *testing.T) {
	text := "a@b.co then c@d.co"
	matches := []pii.Match{
		match("EMAIL", 12, 18, text),
		match("EMAIL", 0, 6, text),
	}

	anonymized, mapping := New().Anonymize(text, matches, testPolicy(t))

	if anonymized != "[EMAIL_1] then [EMAIL_2]" {
		t.Errorf("anonymized = %q, counters must follow text order, not input order", anonymized)
	}
	if mapping["[EMAIL_1]"] != "a@b.co" {
		t.Errorf("mapping[[EMAIL_1]] = %q, want a@b.co", mapping["[EMAIL_1]"])
	}
}

func TestLegacyOverlapAdjacentPlaceholders(t *testing.T) {
	// Two overlapping spans: the historical walk emits both placeholders
	// back to back and records each original in full.
	text := "= John Smither ="
	matches := []pii.Match{
		match("PERSON", 2, 12, text), // "John Smith"
		match("PERSON", 7, 14, text), // "Smither"
	}

	e := New(WithStrategy(Legacy))
	anonymized, mapping := e.Anonymize(text, matches, testPolicy(t))

	want := "= [PERSON_1][PERSON_2] ="
	if anonymized != want {
		t.Errorf("anonymized = %q, want %q", anonymized, want)
	}
	if mapping["[PERSON_1]"] != "John Smith" || mapping["[PERSON_2]"] != "Smither" {
		t.Errorf("mapping must record each overlapping original in full: %v", mapping)
	}
}

func TestLongestMatchOverlap(t *testing.T) {
	text := "call 555-123-4567 now"
	matches := []pii.Match{
		match("PHONE", 5, 13, text),  // "555-123-"
		match("PHONE", 5, 17, text),  // "555-123-4567"
		match("PHONE", 9, 17, text),  // "123-4567"
	}

	anonymized, mapping := New(WithStrategy(LongestMatch)).Anonymize(text, matches, testPolicy(t))

	if anonymized != "call [PHONE_1] now" {
		t.Errorf("anonymized = %q", anonymized)
	}
	if mapping["[PHONE_1]"] != "555-123-4567" {
		t.Errorf("kept %q, want the longest span", mapping["[PHONE_1]"])
	}
}

func TestHighestConfidenceOverlap(t *testing.T) {
	text := "id 555-12-3456 here"
	low := pii.Match{EntityType: "PHONE", Start: 3, End: 14, Text: text[3:14], Confidence: 0.7}
	high := pii.Match{EntityType: "EMAIL", Start: 3, End: 10, Text: text[3:10], Confidence: 0.9}

	anonymized, _ := New(WithStrategy(HighestConfidence)).Anonymize(text, []pii.Match{low, high}, testPolicy(t))

	// The shorter but more confident span wins.
	if anonymized != "id [EMAIL_1]3456 here" {
		t.Errorf("anonymized = %q", anonymized)
	}
}

func TestDetectorPriorityOverlap(t *testing.T) {
	text := "id 555-12-3456 here"
	first := pii.Match{EntityType: "PHONE", Start: 3, End: 10, Text: text[3:10], Confidence: 0.5}
	second := pii.Match{EntityType: "EMAIL", Start: 3, End: 14, Text: text[3:14], Confidence: 0.9}

	anonymized, _ := New(WithStrategy(DetectorPriority)).Anonymize(text, []pii.Match{first, second}, testPolicy(t))

	// Input order is detector run order; the earlier match wins regardless
	// of length or confidence.
	if anonymized != "id [PHONE_1]3456 here" {
		t.Errorf("anonymized = %q", anonymized)
	}
}

func TestSameStartTieGoesToFirstEmitted(t *testing.T) {
	text := "a@b.co!"
	matches := []pii.Match{
		match("EMAIL", 0, 6, text),
		match("PHONE", 0, 6, text),
	}

	// Equal start, equal length: the stable sort keeps input order and the
	// incumbent wins exact ties.
	anonymized, _ := New(WithStrategy(LongestMatch)).Anonymize(text, matches, testPolicy(t))
	if anonymized != "[EMAIL_1]!" {
		t.Errorf("anonymized = %q, want the first-emitted match to win", anonymized)
	}
}

func TestDeanonymizeLiteralPlaceholders(t *testing.T) {
	// Templates may contain regex metacharacters; substitution must treat
	// them as plain text.
	mapping := Mapping{"[EMAIL_1]": "a@b.co", "(PHONE.1)*": "555-123-4567"}
	text := "see [EMAIL_1] and (PHONE.1)*"

	got := New().Deanonymize(text, mapping)
	if got != "see a@b.co and 555-123-4567" {
		t.Errorf("got %q", got)
	}
}

func TestDeanonymizePrefixPlaceholders(t *testing.T) {
	// "ID_1" is a prefix of "ID_12"; longest-first substitution keeps the
	// shorter key from clipping the longer one.
	mapping := Mapping{"ID_1": "alpha", "ID_12": "beta"}
	text := "ID_12 ID_1"

	got := New().Deanonymize(text, mapping)
	if got != "beta alpha" {
		t.Errorf("got %q, want %q", got, "beta alpha")
	}
}

func TestDeanonymizeUnknownPlaceholderUntouched(t *testing.T) {
	mapping := Mapping{"[EMAIL_1]": "a@b.co"}
	text := "[EMAIL_1] [EMAIL_2]"

	got := New().Deanonymize(text, mapping)
	if got != "a@b.co [EMAIL_2]" {
		t.Errorf("got %q", got)
	}
}

func TestDeanonymizeEveryOccurrence(t *testing.T) {
	mapping := Mapping{"[EMAIL_1]": "a@b.co"}
	text := "[EMAIL_1], again [EMAIL_1]"

	got := New().Deanonymize(text, mapping)
	if got != "a@b.co, again a@b.co" {
		t.Errorf("got %q", got)
	}
}

func TestDeanonymizeEmptyMapping(t *testing.T) {
	text := "[EMAIL_1] untouched"
	if got := New().Deanonymize(text, nil); got != text {
		t.Errorf("got %q, want input unchanged", got)
	}
}

func TestAssertionsPanicOnBadMatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on inconsistent match")
		}
	}()

	text := "a@b.co"
	bad := pii.Match{EntityType: "EMAIL", Start: 0, End: 6, Text: "different"}
	New(WithAssertions()).Anonymize(text, []pii.Match{bad}, testPolicy(t))
}

func TestParseOverlapStrategy(t *testing.T) {
	cases := []struct {
		in      string
		want    OverlapStrategy
		wantErr bool
	}{
		{"", LongestMatch, false},
		{"longest", LongestMatch, false},
		{"confidence", HighestConfidence, false},
		{"priority", DetectorPriority, false},
		{"legacy", Legacy, false},
		{"bogus", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseOverlapStrategy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseOverlapStrategy(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOverlapStrategy(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseOverlapStrategy(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
