package policy

import "sort"

// Built-in policy catalog. Each entry maps the entity types a deployment
// cares about to placeholder templates; anything not listed passes through
// the engine untouched.
var builtins = map[string]*Policy{
	"default_pii": {
		Name:        "default_pii",
		Description: "Everyday PII: contact details and names.",
		Entities: map[string]EntityConfig{
			"EMAIL":  {Placeholder: "[EMAIL_{i}]"},
			"PHONE":  {Placeholder: "[PHONE_{i}]"},
			"PERSON": {Placeholder: "[PERSON_{i}]"},
		},
	},
	"strict_pii": {
		Name:        "strict_pii",
		Description: "Everything the built-in detectors can find.",
		Entities: map[string]EntityConfig{
			"EMAIL":          {Placeholder: "[EMAIL_{i}]"},
			"PHONE":          {Placeholder: "[PHONE_{i}]"},
			"PERSON":         {Placeholder: "[PERSON_{i}]"},
			"IP_ADDRESS":     {Placeholder: "[IP_{i}]"},
			"IPV6":           {Placeholder: "[IPV6_{i}]"},
			"CREDIT_CARD":    {Placeholder: "[CARD_{i}]"},
			"SSN":            {Placeholder: "[SSN_{i}]"},
			"NIN_UK":         {Placeholder: "[NIN_{i}]"},
			"PASSPORT":       {Placeholder: "[PASSPORT_{i}]"},
			"IBAN":           {Placeholder: "[IBAN_{i}]"},
			"MAC_ADDRESS":    {Placeholder: "[MAC_{i}]"},
			"URL":            {Placeholder: "[URL_{i}]"},
			"DATE_OF_BIRTH":  {Placeholder: "[DOB_{i}]"},
			"CRYPTO_ADDRESS": {Placeholder: "[WALLET_{i}]"},
		},
	},
	"finance_pii": {
		Name:        "finance_pii",
		Description: "Financial identifiers only; contact details pass through.",
		Entities: map[string]EntityConfig{
			"CREDIT_CARD": {Placeholder: "[CARD_{i}]"},
			"IBAN":        {Placeholder: "[IBAN_{i}]"},
			"SSN":         {Placeholder: "[SSN_{i}]"},
		},
	},
}

// BuiltinNames returns the catalog policy names in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
