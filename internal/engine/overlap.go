package engine

import (
	"fmt"

	"github.com/promptveil/promptveil/internal/pii"
)

// OverlapStrategy selects how conflicting (overlapping or nested) matches
// are resolved before placeholder assignment.
type OverlapStrategy int

const (
	// LongestMatch keeps the longest span in a conflicting group. Ties go
	// to whichever match sorted first. This is the default.
	LongestMatch OverlapStrategy = iota

	// HighestConfidence keeps the highest-confidence span; equal confidence
	// falls back to the longer span, then sort order.
	HighestConfidence

	// DetectorPriority keeps the span emitted earliest in the concatenated
	// detector output, so the first-configured detector wins.
	DetectorPriority

	// Legacy performs no resolution at all and reproduces the historical
	// walk: every match emits a placeholder, and overlapping spans produce
	// adjacent placeholders while the mapping records each original in
	// full. Kept selectable for behavioral compatibility with existing
	// integrations.
	Legacy
)

// String implements fmt.Stringer.
func (s OverlapStrategy) String() string {
	switch s {
	case LongestMatch:
		return "longest"
	case HighestConfidence:
		return "confidence"
	case DetectorPriority:
		return "priority"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("overlap(%d)", int(s))
	}
}

// ParseOverlapStrategy maps a configuration string to a strategy. Unknown
// values are a configuration error.
func ParseOverlapStrategy(s string) (OverlapStrategy, error) {
	switch s {
	case "", "longest":
		return LongestMatch, nil
	case "confidence":
		return HighestConfidence, nil
	case "priority":
		return DetectorPriority, nil
	case "legacy":
		return Legacy, nil
	default:
		return 0, fmt.Errorf("unknown overlap strategy: %s (must be longest, confidence, priority, or legacy)", s)
	}
}

// annotated carries a match with its index in the pre-sort input. The index
// encodes detector run order, which DetectorPriority uses as precedence and
// every strategy uses as the final tie-break.
type annotated struct {
	pii.Match
	order int
}

// resolve drops conflicting matches from a start-sorted slice according to
// the strategy. Legacy returns its input untouched.
func (s OverlapStrategy) resolve(sorted []annotated) []annotated {
	if s == Legacy || len(sorted) <= 1 {
		return sorted
	}

	kept := make([]annotated, 0, len(sorted))
	for _, candidate := range sorted {
		dropped := false
		for len(kept) > 0 && kept[len(kept)-1].Overlaps(candidate.Match) {
			if !s.beats(candidate, kept[len(kept)-1]) {
				dropped = true
				break
			}
			kept = kept[:len(kept)-1]
		}
		if !dropped {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// beats reports whether the challenger should displace the incumbent it
// overlaps. The incumbent wins all exact ties, which keeps resolution stable
// with respect to sort order.
func (s OverlapStrategy) beats(challenger, incumbent annotated) bool {
	switch s {
	case HighestConfidence:
		if challenger.Confidence != incumbent.Confidence {
			return challenger.Confidence > incumbent.Confidence
		}
		return challenger.Len() > incumbent.Len()
	case DetectorPriority:
		return challenger.order < incumbent.order
	default: // LongestMatch
		return challenger.Len() > incumbent.Len()
	}
}
