// Package rules holds the static catalog that maps detected services to
// next steps and command templates.
package rules

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"htbnerd/internal/types"
)

// Pattern selects the services a rule applies to.
//
// A service matches when its name equals one of Names (a trailing "*" makes
// the entry a prefix, "*" alone matches anything) or its port is listed in
// Ports. Protocol and Version, when set, must also hold; Version is a
// case-insensitive substring of the service banner.
type Pattern struct {
	Names    []string       `yaml:"names"`
	Ports    []int          `yaml:"ports"`
	Protocol types.Protocol `yaml:"protocol"`
	Version  string         `yaml:"version"`
}

// Matches reports whether the pattern selects s.
func (p Pattern) Matches(s types.Service) bool {
	if p.Protocol != "" && p.Protocol != s.Protocol {
		return false
	}
	if p.Version != "" && !strings.Contains(strings.ToLower(s.Version), strings.ToLower(p.Version)) {
		return false
	}
	return p.matchesName(s.Name) || slices.Contains(p.Ports, s.Port)
}

func (p Pattern) matchesName(name string) bool {
	for _, n := range p.Names {
		if prefix, ok := strings.CutSuffix(n, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if n == name {
			return true
		}
	}
	return false
}

// Rule pairs a pattern with advice for matching services.
type Rule struct {
	ID        string   `yaml:"id"`
	Match     Pattern  `yaml:"match"`
	Priority  int      `yaml:"priority"`
	NextSteps []string `yaml:"next_steps"`
	Commands  []string `yaml:"commands"`
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule has no id")
	}
	if len(r.Match.Names) == 0 && len(r.Match.Ports) == 0 {
		return fmt.Errorf("rule %s: match needs at least one name or port", r.ID)
	}
	for _, n := range r.Match.Names {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("rule %s: empty name pattern", r.ID)
		}
		if n != strings.ToLower(n) {
			return fmt.Errorf("rule %s: name pattern %q must be lower case", r.ID, n)
		}
		if strings.Count(n, "*") > 1 || (strings.Contains(n, "*") && !strings.HasSuffix(n, "*")) {
			return fmt.Errorf("rule %s: name pattern %q may only end with '*'", r.ID, n)
		}
	}
	for _, port := range r.Match.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("rule %s: port %d out of range", r.ID, port)
		}
	}
	switch r.Match.Protocol {
	case "", types.ProtocolTCP, types.ProtocolUDP:
	default:
		return fmt.Errorf("rule %s: unsupported protocol %q", r.ID, r.Match.Protocol)
	}
	if len(r.NextSteps) == 0 && len(r.Commands) == 0 {
		return fmt.Errorf("rule %s: needs next_steps or commands", r.ID)
	}
	return nil
}

func (r Rule) clone() Rule {
	r.Match.Names = slices.Clone(r.Match.Names)
	r.Match.Ports = slices.Clone(r.Match.Ports)
	r.NextSteps = slices.Clone(r.NextSteps)
	r.Commands = slices.Clone(r.Commands)
	return r
}

// Catalog is an immutable, ordered rule table. Build it once at startup and
// pass it to the suggestion engine.
type Catalog struct {
	rules   []Rule
	general []string
}

// NewCatalog validates rules and freezes them in declaration order.
func NewCatalog(rules []Rule, general []string) (*Catalog, error) {
	seen := make(map[string]bool, len(rules))
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		out = append(out, r.clone())
	}
	return &Catalog{rules: out, general: slices.Clone(general)}, nil
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns a copy of the table in declaration order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.clone()
	}
	return out
}

// General returns service-independent first steps.
func (c *Catalog) General() []string {
	return slices.Clone(c.general)
}

// Match returns every rule that selects s, highest priority first. Rules
// with equal priority keep their declaration order.
func (c *Catalog) Match(s types.Service) []Rule {
	matched := c.MatchIndexed(s)
	out := make([]Rule, len(matched))
	for i, m := range matched {
		out[i] = m.Rule
	}
	return out
}

// MatchIndexed is Match plus each rule's declaration index, for callers that
// need a stable secondary sort key across services.
func (c *Catalog) MatchIndexed(s types.Service) []IndexedRule {
	var out []IndexedRule
	for i, r := range c.rules {
		if r.Match.Matches(s) {
			out = append(out, IndexedRule{Index: i, Rule: r.clone()})
		}
	}
	slices.SortStableFunc(out, func(a, b IndexedRule) int { return cmp.Compare(b.Rule.Priority, a.Rule.Priority) })
	return out
}

// IndexedRule is a matched rule with its position in the catalog.
type IndexedRule struct {
	Index int
	Rule  Rule
}

// Extend returns a new catalog with other's rules appended after c's.
// Rule IDs must stay unique; general steps are concatenated.
func (c *Catalog) Extend(other *Catalog) (*Catalog, error) {
	if other == nil {
		return c, nil
	}
	rules := append(c.Rules(), other.Rules()...)
	general := append(c.General(), other.General()...)
	return NewCatalog(rules, general)
}
