package pii

import "regexp"

// Additional entity types produced by the enhanced detector.
const (
	EntityIPv6          = "IPV6"
	EntityMACAddress    = "MAC_ADDRESS"
	EntityIBAN          = "IBAN"
	EntityPassport      = "PASSPORT"
	EntityURL           = "URL"
	EntityDateOfBirth   = "DATE_OF_BIRTH"
	EntityNINUK         = "NIN_UK"
	EntityCryptoAddress = "CRYPTO_ADDRESS"
)

var enhancedRules = []rule{
	// RFC 5322 style email, stricter than the base rule about domain labels.
	{EntityEmail, regexp.MustCompile("\\b[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+\\b"), 0.95},
	// E.164 and US formats.
	{EntityPhone, regexp.MustCompile(`\+[1-9]\d{7,14}\b`), 0.9},
	{EntityPhone, regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), 0.75},
	// Names, with and without honorifics.
	{EntityPerson, regexp.MustCompile(`\b(?:Mr\.?|Mrs\.?|Ms\.?|Miss|Dr\.?|Prof\.?)\s+[A-Z][a-z]+(?:\s[A-Z][a-z]+)*\b`), 0.8},
	{EntityPerson, regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)+\b`), 0.5},
	{EntityIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`), 0.9},
	{EntityIPv6, regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`), 0.9},
	// Vendor-prefixed card patterns score above the generic 4x4 fallback.
	{EntityCreditCard, regexp.MustCompile(`\b4\d{3}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`), 0.9},
	{EntityCreditCard, regexp.MustCompile(`\b5[1-5]\d{2}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`), 0.9},
	{EntityCreditCard, regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`), 0.7},
	{EntitySSN, regexp.MustCompile(`\b\d{3}[\s\-]?\d{2}[\s\-]?\d{4}\b`), 0.8},
	{EntityNINUK, regexp.MustCompile(`\b[A-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`), 0.8},
	{EntityPassport, regexp.MustCompile(`\b[A-Z]\d{8}\b`), 0.6},
	{EntityIBAN, regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`), 0.8},
	{EntityDateOfBirth, regexp.MustCompile(`\b(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`), 0.5},
	{EntityURL, regexp.MustCompile(`\b(?:https?://|www\.)[^\s<>"]+`), 0.7},
	{EntityMACAddress, regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`), 0.9},
	{EntityCryptoAddress, regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`), 0.9},
	{EntityCryptoAddress, regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`), 0.6},
}

// EnhancedDetector extends the canonical rule set with international and
// infrastructure identifiers (IPv6, MAC, IBAN, passports, crypto addresses,
// honorific name forms). It deliberately overlaps the base detector: running
// both produces duplicate and nested spans that the engine's overlap
// strategy resolves.
type EnhancedDetector struct {
	rules []rule
}

// NewEnhancedDetector returns the extended pattern detector.
func NewEnhancedDetector() *EnhancedDetector {
	return &EnhancedDetector{rules: enhancedRules}
}

// Name implements Detector.
func (d *EnhancedDetector) Name() string { return "enhanced" }

// Detect implements Detector.
func (d *EnhancedDetector) Detect(text string) []Match {
	return detectWithRules(text, d.rules, d.Name())
}
