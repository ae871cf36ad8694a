// Package guard bundles detectors, a policy and the engine behind the
// two operations integrators actually call: Anonymize and Deanonymize.
package guard

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/promptveil/promptveil/internal/engine"
	"github.com/promptveil/promptveil/internal/logger"
	"github.com/promptveil/promptveil/internal/pii"
	"github.com/promptveil/promptveil/internal/policy"
)

// Options configures a Guard. All fields are resolved and validated in New;
// a constructed Guard never fails at call time.
type Options struct {
	// Detectors lists detector registry identifiers, run in order. Empty
	// defaults to the canonical regex detector.
	Detectors []string

	// Policy names a built-in policy; PolicyPath overrides it with an
	// external YAML file.
	Policy     string
	PolicyPath string

	// Overlap is the engine's conflict resolution strategy.
	Overlap engine.OverlapStrategy

	// Assert enables the engine's debug precondition checks.
	Assert bool
}

// Result is one anonymization outcome.
type Result struct {
	Anonymized string
	Mapping    engine.Mapping
}

// Guard is immutable after construction and safe for concurrent use.
type Guard struct {
	detectors []pii.Detector
	policy    *policy.Policy
	engine    *engine.Engine
	log       *logger.Logger
}

// New resolves detectors and policy and returns a ready Guard. All
// configuration errors (unknown detector or policy, malformed policy file)
// surface here.
func New(opts Options, log *logger.Logger) (*Guard, error) {
	detectors, err := pii.Build(opts.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	name := opts.Policy
	if name == "" && opts.PolicyPath == "" {
		name = "default_pii"
	}
	pol, err := policy.Load(name, opts.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	engineOpts := []engine.Option{engine.WithStrategy(opts.Overlap)}
	if opts.Assert {
		engineOpts = append(engineOpts, engine.WithAssertions())
	}

	g := &Guard{
		detectors: detectors,
		policy:    pol,
		engine:    engine.New(engineOpts...),
		log:       log,
	}

	log.Info("Guard initialized",
		zap.Int("detectors", len(detectors)),
		zap.String("policy", pol.Name),
		zap.Int("entity_types", len(pol.Entities)),
		zap.String("overlap_strategy", g.engine.Strategy().String()),
	)

	return g, nil
}

// Policy returns the active policy.
func (g *Guard) Policy() *policy.Policy { return g.policy }

// DetectorNames returns the configured detector identifiers in run order.
func (g *Guard) DetectorNames() []string {
	names := make([]string, len(g.detectors))
	for i, d := range g.detectors {
		names[i] = d.Name()
	}
	return names
}

// Detect runs every detector and returns the concatenated raw matches.
func (g *Guard) Detect(text string) []pii.Match {
	return pii.DetectAll(g.detectors, text)
}

// Anonymize detects PII in text and replaces configured entity types with
// placeholders. The returned mapping belongs to the caller; the guard keeps
// no reference to it.
func (g *Guard) Anonymize(text string) (string, engine.Mapping) {
	matches := g.Detect(text)
	anonymized, mapping := g.engine.Anonymize(text, matches, g.policy)

	if len(mapping) > 0 {
		g.log.Debug("Text anonymized",
			zap.Int("matches", len(matches)),
			zap.Int("placeholders", len(mapping)),
		)
	}
	return anonymized, mapping
}

// Deanonymize restores the original values recorded in mapping.
func (g *Guard) Deanonymize(text string, mapping engine.Mapping) string {
	return g.engine.Deanonymize(text, mapping)
}

// BatchAnonymize anonymizes each text independently. Counters restart per
// text, so results are identical to calling Anonymize in a loop.
func (g *Guard) BatchAnonymize(texts []string) []Result {
	results := make([]Result, len(texts))
	for i, text := range texts {
		anonymized, mapping := g.Anonymize(text)
		results[i] = Result{Anonymized: anonymized, Mapping: mapping}
	}
	return results
}

// BatchDeanonymize restores each text with its corresponding mapping. The
// two slices must have equal length.
func (g *Guard) BatchDeanonymize(texts []string, mappings []engine.Mapping) ([]string, error) {
	if len(texts) != len(mappings) {
		return nil, fmt.Errorf("texts and mappings length mismatch: %d != %d", len(texts), len(mappings))
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = g.engine.Deanonymize(text, mappings[i])
	}
	return out, nil
}
