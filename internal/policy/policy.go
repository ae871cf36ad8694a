// Package policy defines the entity-to-placeholder configuration consumed by
// the anonymization engine. Policies come from a built-in catalog keyed by
// name or from an external YAML file, are validated once at load time, and
// are immutable afterwards.
package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CounterToken is the substitution token each placeholder template must
// contain exactly once. The engine replaces it with the per-entity counter.
const CounterToken = "{i}"

// EntityConfig holds the per-entity-type behavior flags.
type EntityConfig struct {
	Placeholder string `yaml:"placeholder"`
}

// Policy maps entity type identifiers to placeholder configuration.
type Policy struct {
	Name        string                  `yaml:"name"`
	Description string                  `yaml:"description"`
	Entities    map[string]EntityConfig `yaml:"entities"`
}

// Configured reports whether the policy has an entry for the entity type.
func (p *Policy) Configured(entityType string) bool {
	_, ok := p.Entities[entityType]
	return ok
}

// EntityTypes returns the configured entity types in sorted order.
func (p *Policy) EntityTypes() []string {
	types := make([]string, 0, len(p.Entities))
	for t := range p.Entities {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate checks the structural invariants: a name, at least one entity,
// and exactly one counter token per placeholder template. Failing here keeps
// malformed documents from surfacing as corrupt output on first use.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy is missing required key: name")
	}
	if len(p.Entities) == 0 {
		return fmt.Errorf("policy %q has no entities configured", p.Name)
	}
	seen := make(map[string]string, len(p.Entities))
	for entityType, cfg := range p.Entities {
		if entityType == "" {
			return fmt.Errorf("policy %q has an entity with an empty type identifier", p.Name)
		}
		if cfg.Placeholder == "" {
			return fmt.Errorf("policy %q entity %s has no placeholder template", p.Name, entityType)
		}
		if strings.Count(cfg.Placeholder, CounterToken) != 1 {
			return fmt.Errorf("policy %q entity %s placeholder %q must contain the %s token exactly once",
				p.Name, entityType, cfg.Placeholder, CounterToken)
		}
		// Shared templates would let two entity types render identical
		// placeholders and collide in the mapping.
		if other, dup := seen[cfg.Placeholder]; dup {
			return fmt.Errorf("policy %q entities %s and %s share placeholder template %q",
				p.Name, other, entityType, cfg.Placeholder)
		}
		seen[cfg.Placeholder] = entityType
	}
	return nil
}

// Load resolves a policy by built-in name, or from a YAML file when path is
// non-empty. The returned policy is validated; errors are configuration
// errors raised at construction time.
func Load(name, path string) (*Policy, error) {
	if path != "" {
		return LoadFile(path)
	}

	builtin, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy: %s (available: %v)", name, BuiltinNames())
	}
	// Copy so callers can never mutate the catalog entry.
	p := builtin.clone()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile parses and validates a policy YAML document from disk.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return &p, nil
}

func (p *Policy) clone() *Policy {
	entities := make(map[string]EntityConfig, len(p.Entities))
	for k, v := range p.Entities {
		entities[k] = v
	}
	return &Policy{Name: p.Name, Description: p.Description, Entities: entities}
}
