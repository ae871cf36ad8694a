// Package engine implements the reversible anonymization core: it merges
// detector output, resolves overlapping spans, substitutes counter-based
// placeholders, and inverts the substitution exactly.
package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/promptveil/promptveil/internal/pii"
	"github.com/promptveil/promptveil/internal/policy"
)

// Mapping is the placeholder → original value table produced by one
// Anonymize call. Keys are unique by construction because every placeholder
// embeds a per-entity-type counter. Iteration order is irrelevant to
// inversion; Deanonymize orders substitutions itself.
type Mapping map[string]string

// Engine turns detector matches into anonymized text. It holds no per-call
// state: counters live on the stack of each Anonymize invocation, so one
// Engine may serve concurrent calls.
type Engine struct {
	strategy OverlapStrategy

	// assert enables the debug-mode precondition check that every match's
	// Text equals the corresponding slice of the input. Violations panic;
	// production callers leave this off and own the precondition instead.
	assert bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy selects the overlap resolution strategy.
func WithStrategy(s OverlapStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithAssertions enables debug precondition checks on detector output.
func WithAssertions() Option {
	return func(e *Engine) { e.assert = true }
}

// New creates an engine. The zero configuration uses LongestMatch overlap
// resolution with assertions disabled.
func New(opts ...Option) *Engine {
	e := &Engine{strategy: LongestMatch}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the configured overlap strategy.
func (e *Engine) Strategy() OverlapStrategy { return e.strategy }

// Anonymize replaces policy-configured matches in text with counter-based
// placeholders and returns the anonymized text plus the inversion mapping.
//
// Matches whose entity type has no policy entry pass through verbatim; that
// is policy scoping, not an error. Surviving matches are stable-sorted by
// start offset, so same-start precedence follows detector run order and
// each detector's emission order. Counters are per entity type, 1-based,
// and scoped to this call, which makes the whole operation deterministic
// for a fixed (text, matches, policy) triple.
func (e *Engine) Anonymize(text string, matches []pii.Match, p *policy.Policy) (string, Mapping) {
	mapping := make(Mapping)
	if len(matches) == 0 {
		return text, mapping
	}

	survivors := make([]annotated, 0, len(matches))
	for i, m := range matches {
		if !p.Configured(m.EntityType) {
			continue
		}
		if e.assert {
			if err := m.Validate(text); err != nil {
				panic("engine: detector precondition violated: " + err.Error())
			}
		}
		survivors = append(survivors, annotated{Match: m, order: i})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Start < survivors[j].Start
	})

	survivors = e.strategy.resolve(survivors)

	var b strings.Builder
	b.Grow(len(text))
	counters := make(map[string]int)
	lastIndex := 0

	for _, m := range survivors {
		// Under Legacy a span overlapping already-consumed text copies
		// nothing and emits its placeholder adjacent to the previous one.
		if m.Start > lastIndex {
			b.WriteString(text[lastIndex:m.Start])
		}

		counters[m.EntityType]++
		tpl := p.Entities[m.EntityType].Placeholder
		placeholder := strings.Replace(tpl, policy.CounterToken, strconv.Itoa(counters[m.EntityType]), 1)

		b.WriteString(placeholder)
		mapping[placeholder] = m.Text
		lastIndex = m.End
	}

	if lastIndex < len(text) {
		b.WriteString(text[lastIndex:])
	}

	return b.String(), mapping
}

// Deanonymize restores original values for every placeholder occurrence in
// text. Placeholders are treated as literal strings, never as patterns, so
// templates containing regex metacharacters are safe. Unknown placeholders
// are left untouched; the function is total over well-formed input.
//
// Substitutions run longest-placeholder-first so that a template whose
// rendered counter is a prefix of another rendering (e.g. "ID_1" within
// "ID_12") can never be clipped by a shorter key.
func (e *Engine) Deanonymize(text string, mapping Mapping) string {
	if len(mapping) == 0 {
		return text
	}

	placeholders := make([]string, 0, len(mapping))
	for placeholder := range mapping {
		placeholders = append(placeholders, placeholder)
	}
	sort.Slice(placeholders, func(i, j int) bool {
		if len(placeholders[i]) != len(placeholders[j]) {
			return len(placeholders[i]) > len(placeholders[j])
		}
		return placeholders[i] < placeholders[j]
	})

	for _, placeholder := range placeholders {
		text = strings.ReplaceAll(text, placeholder, mapping[placeholder])
	}
	return text
}
