package pii

import (
	"fmt"
	"sort"
)

// Detector finds candidate PII spans in raw text.
//
// Implementations must be pure: no mutation of the input, no external state
// beyond their own configuration, and no error path for any input (an empty
// string yields an empty result). Matches may be returned in any order and
// may overlap or duplicate each other; ordering and conflict resolution are
// the engine's responsibility.
type Detector interface {
	// Name returns the registry identifier of this detector.
	Name() string

	// Detect returns all candidate matches in text.
	Detect(text string) []Match
}

// Factory constructs a detector instance.
type Factory func() Detector

var registry = map[string]Factory{
	"regex":    func() Detector { return NewRegexDetector() },
	"enhanced": func() Detector { return NewEnhancedDetector() },
}

// Register adds a detector factory under the given identifier. Existing
// entries are overwritten, which lets callers shadow a built-in detector.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Names returns the registered detector identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves detector identifiers to instances. Unknown identifiers are
// a configuration error raised here, at construction, never at detect time.
// The returned slice preserves the requested order; that order is what makes
// same-start tie-breaks reproducible downstream.
func Build(names []string) ([]Detector, error) {
	if len(names) == 0 {
		names = []string{"regex"}
	}

	detectors := make([]Detector, 0, len(names))
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown detector: %s (available: %v)", name, Names())
		}
		detectors = append(detectors, factory())
	}
	return detectors, nil
}

// DetectAll runs every detector in order and concatenates the results.
// Detectors share no mutable state, so sequential invocation is purely a
// determinism choice: concatenation order feeds the engine's stable sort.
func DetectAll(detectors []Detector, text string) []Match {
	var all []Match
	for _, d := range detectors {
		all = append(all, d.Detect(text)...)
	}
	return all
}
