package pii

import "fmt"

// Match represents a single detected PII span in a source text.
// Start and End are half-open byte offsets into the source string;
// Text must equal source[Start:End].
type Match struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Detector   string  `json:"detector,omitempty"`
}

// Len returns the span length in bytes.
func (m Match) Len() int {
	return m.End - m.Start
}

// Overlaps reports whether two spans share at least one byte.
func (m Match) Overlaps(other Match) bool {
	return m.Start < other.End && other.Start < m.End
}

// Validate checks the match offsets against the source text. Detectors are
// required to produce consistent matches; this check is only run when the
// engine's debug assertions are enabled.
func (m Match) Validate(source string) error {
	if m.Start < 0 || m.End > len(source) || m.Start > m.End {
		return fmt.Errorf("match offsets out of bounds: [%d:%d) in text of length %d", m.Start, m.End, len(source))
	}
	if source[m.Start:m.End] != m.Text {
		return fmt.Errorf("match text %q does not equal source[%d:%d]", m.Text, m.Start, m.End)
	}
	return nil
}
