package guard

import "github.com/promptveil/promptveil/internal/pii"

// RiskLevel grades how sensitive a text is based on what was detected.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Entity types that immediately escalate the risk grade.
var highRiskEntities = map[string]bool{
	"SSN":            true,
	"CREDIT_CARD":    true,
	"PASSPORT":       true,
	"NIN_UK":         true,
	"IBAN":           true,
	"CRYPTO_ADDRESS": true,
	"DATE_OF_BIRTH":  true,
}

var mediumRiskEntities = map[string]bool{
	"EMAIL":       true,
	"PHONE":       true,
	"IP_ADDRESS":  true,
	"IPV6":        true,
	"MAC_ADDRESS": true,
}

// Report summarizes a detection pass for auditing. It carries counts and
// coverage, never the matched text itself.
type Report struct {
	Summary    map[string]int `json:"summary"`
	TotalChars int            `json:"total_chars"`
	PIIChars   int            `json:"pii_chars"`
	Coverage   float64        `json:"coverage"`
	Risk       RiskLevel      `json:"risk"`
}

// Report runs detection over text and grades the result.
func (g *Guard) Report(text string) *Report {
	return buildReport(text, g.Detect(text))
}

func buildReport(text string, matches []pii.Match) *Report {
	summary := make(map[string]int)
	piiChars := 0
	for _, m := range matches {
		summary[m.EntityType]++
		piiChars += m.Len()
	}

	coverage := 0.0
	if len(text) > 0 {
		coverage = float64(piiChars) / float64(len(text))
	}

	return &Report{
		Summary:    summary,
		TotalChars: len(text),
		PIIChars:   piiChars,
		Coverage:   coverage,
		Risk:       gradeRisk(summary, coverage),
	}
}

// gradeRisk applies the escalation ladder: any high-risk entity is
// critical; several medium-risk hits or heavy coverage is high; a single
// medium-risk hit or noticeable coverage is medium.
func gradeRisk(summary map[string]int, coverage float64) RiskLevel {
	if len(summary) == 0 {
		return RiskLow
	}

	mediumHits := 0
	for entityType, count := range summary {
		if highRiskEntities[entityType] {
			return RiskCritical
		}
		if mediumRiskEntities[entityType] {
			mediumHits += count
		}
	}

	switch {
	case mediumHits > 2 || coverage > 0.3:
		return RiskHigh
	case mediumHits > 0 || coverage > 0.1:
		return RiskMedium
	default:
		return RiskLow
	}
}
