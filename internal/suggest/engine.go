// Package suggest derives ranked next steps and command cheatsheets from the
// services detected for a challenge. It is pure: no I/O, no errors, and the
// same catalog and services always produce the same output.
package suggest

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"htbnerd/internal/logging"
	"htbnerd/internal/rules"
	"htbnerd/internal/types"
)

// DefaultConciseLimit is the number of steps returned by Concise when the
// caller passes a non-positive limit.
const DefaultConciseLimit = 5

// Item is one suggested action, scoped to the service that triggered it.
type Item struct {
	Text     string
	Service  types.Service
	Priority int
	RuleID   string

	ruleIndex int
	stepIndex int
}

// Engine evaluates a rule catalog against a read-only view of services.
type Engine struct {
	catalog *rules.Catalog
}

// NewEngine binds an engine to a catalog. A nil catalog falls back to the
// built-in defaults.
func NewEngine(catalog *rules.Catalog) *Engine {
	if catalog == nil {
		catalog = rules.Default()
	}
	return &Engine{catalog: catalog}
}

// openServices returns the open services of src in service order.
func openServices(src types.ServiceSource) []types.Service {
	if src == nil {
		return nil
	}
	services := src.Services()
	services = slices.DeleteFunc(services, func(s types.Service) bool { return !s.IsOpen() })
	slices.SortFunc(services, types.CompareServices)
	return services
}

// Verbose lists every next step of every matching rule for every open
// service, ordered by rule priority (highest first), then service
// host/port, then catalog order. The same step against two services
// appears twice.
func (e *Engine) Verbose(src types.ServiceSource) []Item {
	var items []Item
	for _, svc := range openServices(src) {
		for _, m := range e.catalog.MatchIndexed(svc) {
			for i, step := range m.Rule.NextSteps {
				items = append(items, Item{
					Text:      step,
					Service:   svc,
					Priority:  m.Rule.Priority,
					RuleID:    m.Rule.ID,
					ruleIndex: m.Index,
					stepIndex: i,
				})
			}
		}
	}
	slices.SortStableFunc(items, compareItems)
	logging.SuggestDebug("verbose: %d steps", len(items))
	return items
}

func compareItems(a, b Item) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := types.CompareServices(a.Service, b.Service); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ruleIndex, b.ruleIndex); c != 0 {
		return c
	}
	return cmp.Compare(a.stepIndex, b.stepIndex)
}

// Concise returns the first limit distinct steps of Verbose. Each text keeps
// the attribution of its first, highest ranked occurrence.
func (e *Engine) Concise(src types.ServiceSource, limit int) []Item {
	if limit <= 0 {
		limit = DefaultConciseLimit
	}
	seen := make(map[string]bool)
	var out []Item
	for _, it := range e.Verbose(src) {
		if seen[it.Text] {
			continue
		}
		seen[it.Text] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

// General returns the catalog's service-independent first steps, or nothing
// when no open service is known yet.
func (e *Engine) General(src types.ServiceSource) []string {
	if len(openServices(src)) == 0 {
		return nil
	}
	return e.catalog.General()
}

// Cheatsheet maps a service name to its ready-to-copy commands.
type Cheatsheet map[string][]string

// Names returns the service names in sorted order.
func (c Cheatsheet) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Cheatsheet collects the command templates of every rule matching an open
// service, grouped by service name and deduplicated. A rule's {host} and
// {port} are filled from the first service (in host/port order) with that
// name that the rule matched.
func (e *Engine) Cheatsheet(src types.ServiceSource) Cheatsheet {
	type anchorKey struct {
		name string
		rule int
	}
	sheet := Cheatsheet{}
	anchors := map[anchorKey]bool{}
	seen := map[string]map[string]bool{}

	for _, svc := range openServices(src) {
		if seen[svc.Name] == nil {
			seen[svc.Name] = map[string]bool{}
		}
		for _, m := range e.catalog.MatchIndexed(svc) {
			key := anchorKey{name: svc.Name, rule: m.Index}
			if anchors[key] {
				continue
			}
			anchors[key] = true
			for _, tmpl := range m.Rule.Commands {
				line := Render(tmpl, svc)
				if seen[svc.Name][line] {
					continue
				}
				seen[svc.Name][line] = true
				sheet[svc.Name] = append(sheet[svc.Name], line)
			}
		}
	}
	logging.SuggestDebug("cheatsheet: %d service names, %d rule anchors", len(sheet), len(anchors))
	return sheet
}

// Render substitutes the {host} and {port} placeholders of a template.
func Render(tmpl string, svc types.Service) string {
	return strings.NewReplacer(
		rules.PlaceholderHost, svc.Host,
		rules.PlaceholderPort, strconv.Itoa(svc.Port),
	).Replace(tmpl)
}
