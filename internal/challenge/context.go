// Package challenge implements the per-challenge context store: one JSON
// record per challenge holding detected services, notes and an action history.
package challenge

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"htbnerd/internal/types"
)

// Type classifies a challenge.
type Type string

const (
	TypeStartingPoint Type = "starting_point"
	TypeMachine       Type = "machine"
	TypeOther         Type = "other"
)

// ParseType accepts the spellings used on the command line.
// Empty input defaults to machine.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "machine", "box":
		return TypeMachine, nil
	case "starting_point", "starting-point", "startingpoint", "sp":
		return TypeStartingPoint, nil
	case "other":
		return TypeOther, nil
	default:
		return "", fmt.Errorf("%w: unknown challenge type %q (want starting-point, machine or other)",
			types.ErrContractViolation, s)
	}
}

// History entry kinds.
const (
	KindStart    = "start"
	KindLoadScan = "load_scan"
	KindAsk      = "ask"
	KindQuiz     = "quiz"
)

// Note is a timestamped free-text note.
type Note struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry is one recorded action.
type HistoryEntry struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Summary  string    `json:"summary"`
	Question string    `json:"question,omitempty"`
	Answer   string    `json:"answer,omitempty"`
	At       time.Time `json:"at"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateName rejects names that are empty or unsafe as file names.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid challenge name %q (letters, digits, '.', '_' and '-', max 64)",
			types.ErrContractViolation, name)
	}
	return nil
}

// Context is the full persisted record of one challenge.
// The services map is private so that the dedup key invariant can only be
// maintained through Store.Merge.
type Context struct {
	Name      string
	Type      Type
	CreatedAt time.Time
	UpdatedAt time.Time
	Notes     []Note
	History   []HistoryEntry
	Artifacts map[string]string

	services map[types.Key]types.Service
}

func newContext(name string, typ Type, now time.Time) *Context {
	return &Context{
		Name:      name,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
		Notes:     []Note{},
		History:   []HistoryEntry{},
		Artifacts: map[string]string{},
		services:  map[types.Key]types.Service{},
	}
}

// Services returns all stored services in deterministic order.
func (c *Context) Services() []types.Service {
	out := slices.Collect(maps.Values(c.services))
	slices.SortFunc(out, types.CompareServices)
	return out
}

// OpenServices returns the open subset of Services.
func (c *Context) OpenServices() []types.Service {
	out := c.Services()
	return slices.DeleteFunc(out, func(s types.Service) bool { return !s.IsOpen() })
}

// Service looks up a service by key.
func (c *Context) Service(k types.Key) (types.Service, bool) {
	s, ok := c.services[k]
	return s, ok
}

// clone returns a deep copy safe to mutate independently.
func (c *Context) clone() *Context {
	out := *c
	out.Notes = slices.Clone(c.Notes)
	out.History = slices.Clone(c.History)
	out.Artifacts = maps.Clone(c.Artifacts)
	out.services = maps.Clone(c.services)
	if out.Artifacts == nil {
		out.Artifacts = map[string]string{}
	}
	if out.services == nil {
		out.services = map[types.Key]types.Service{}
	}
	return &out
}

// =============================================================================
// JSON RECORD
// =============================================================================

type record struct {
	Name      string            `json:"name"`
	Type      Type              `json:"challenge_type"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Services  []types.Service   `json:"services"`
	Notes     []Note            `json:"notes"`
	History   []HistoryEntry    `json:"history"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// MarshalJSON writes services as an array sorted by host, port and protocol.
func (c *Context) MarshalJSON() ([]byte, error) {
	rec := record{
		Name:      c.Name,
		Type:      c.Type,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Services:  c.Services(),
		Notes:     c.Notes,
		History:   c.History,
		Artifacts: c.Artifacts,
	}
	if rec.Services == nil {
		rec.Services = []types.Service{}
	}
	if rec.Notes == nil {
		rec.Notes = []Note{}
	}
	if rec.History == nil {
		rec.History = []HistoryEntry{}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON validates the record as it decodes it. Any violation is
// reported as an error so that Load can surface it as a corrupt record.
func (c *Context) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if err := ValidateName(rec.Name); err != nil {
		return err
	}
	typ, err := ParseType(string(rec.Type))
	if err != nil {
		return err
	}

	out := newContext(rec.Name, typ, rec.CreatedAt)
	out.UpdatedAt = rec.UpdatedAt
	if rec.Notes != nil {
		out.Notes = rec.Notes
	}
	if rec.History != nil {
		out.History = rec.History
	}
	if rec.Artifacts != nil {
		out.Artifacts = rec.Artifacts
	}
	for _, s := range rec.Services {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := out.services[s.Key()]; dup {
			return fmt.Errorf("duplicate service %s", s.Key())
		}
		out.services[s.Key()] = s
	}
	*c = *out
	return nil
}
