package challenge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"htbnerd/internal/logging"
	"htbnerd/internal/types"
)

const recordExt = ".json"

// Store persists one JSON record per challenge under a single directory.
// It is not safe for concurrent use; the shell owns it and calls it from
// one goroutine.
type Store struct {
	dir string
	now func() time.Time
	log *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens (and creates if needed) the challenge directory.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: store directory is empty", types.ErrContractViolation)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create challenge directory: %w", err)
	}
	s := &Store{
		dir: dir,
		now: time.Now,
		log: logging.Named(logging.CategoryStore),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+recordExt)
}

// Exists reports whether a record for name is on disk.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Create persists a new challenge record.
func (s *Store) Create(name string, typ Type) (*Context, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := ParseType(string(typ)); err != nil {
		return nil, err
	}
	if s.Exists(name) {
		return nil, fmt.Errorf("%w: %s", types.ErrAlreadyExists, name)
	}

	c := newContext(name, typ, s.now().UTC())
	c.History = append(c.History, NewHistoryEntry(KindStart, fmt.Sprintf("started %s challenge %s", typ, name), c.CreatedAt))
	if err := s.write(c); err != nil {
		return nil, err
	}
	s.log.Info("challenge created", zap.String("name", name), zap.String("type", string(typ)))
	return c, nil
}

// Load reads a record. A record that cannot be decoded is reported as
// ErrCorruptRecord and left untouched on disk.
func (s *Store) Load(name string) (*Context, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read challenge %s: %w", name, err)
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		s.log.Error("corrupt record", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCorruptRecord, s.path(name), err)
	}
	if c.Name != name {
		return nil, fmt.Errorf("%w: %s: record name %q does not match file name",
			types.ErrCorruptRecord, s.path(name), c.Name)
	}
	return &c, nil
}

// Update applies fn to a copy of c, bumps UpdatedAt and writes the copy.
// Only when the write succeeds is the copy published into c, so a failed
// mutation leaves both the caller's handle and the file unchanged.
func (s *Store) Update(c *Context, fn func(next *Context) error) (*Context, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil challenge context", types.ErrContractViolation)
	}
	next := c.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.advance(c.UpdatedAt)
	if err := s.write(next); err != nil {
		return nil, err
	}
	*c = *next
	return c, nil
}

// advance returns the current time, forced strictly past prev.
func (s *Store) advance(prev time.Time) time.Time {
	now := s.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

// MergeReport summarizes what a merge changed.
type MergeReport struct {
	Added     int
	Updated   int
	Unchanged int
	Skipped   int // non-open services with no existing record
	Removed   int // known services reported closed or filtered
}

// Merge folds detected services into the challenge. Existing keys have
// their version and state refreshed; new keys are inserted only when open.
// Every service is validated before anything changes.
func (s *Store) Merge(c *Context, services []types.Service) (*Context, MergeReport, error) {
	return s.merge(c, services, nil)
}

// MergeScan merges the services parsed from a scan file, records the file
// as the latest artifact of its kind and appends a load_scan history entry,
// all in a single write.
func (s *Store) MergeScan(c *Context, services []types.Service, kind, path string) (*Context, MergeReport, error) {
	if strings.TrimSpace(kind) == "" || strings.TrimSpace(path) == "" {
		return nil, MergeReport{}, fmt.Errorf("%w: artifact kind and path are required", types.ErrContractViolation)
	}
	return s.merge(c, services, func(next *Context, r MergeReport) {
		next.Artifacts[kind] = path
		entry := NewHistoryEntry(KindLoadScan,
			fmt.Sprintf("loaded %s: %d added, %d updated", filepath.Base(path), r.Added, r.Updated),
			s.now().UTC())
		next.History = append(next.History, entry)
	})
}

// SetArtifact records the latest file of the given kind.
func (s *Store) SetArtifact(c *Context, kind, path string) (*Context, error) {
	if strings.TrimSpace(kind) == "" || strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: artifact kind and path are required", types.ErrContractViolation)
	}
	return s.Update(c, func(next *Context) error {
		next.Artifacts[kind] = path
		return nil
	})
}

func (s *Store) merge(c *Context, services []types.Service, after func(*Context, MergeReport)) (*Context, MergeReport, error) {
	var report MergeReport
	for _, svc := range services {
		if err := svc.Validate(); err != nil {
			return nil, report, err
		}
	}

	out, err := s.Update(c, func(next *Context) error {
		report = mergeInto(next, services)
		if after != nil {
			after(next, report)
		}
		return nil
	})
	if err != nil {
		return nil, MergeReport{}, err
	}
	s.log.Info("services merged",
		zap.String("name", c.Name),
		zap.Int("added", report.Added),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("skipped", report.Skipped))
	return out, report, nil
}

func mergeInto(c *Context, services []types.Service) MergeReport {
	var r MergeReport
	for _, in := range services {
		cur, ok := c.services[in.Key()]
		if !in.IsOpen() {
			// Only open services are retained.
			if ok {
				delete(c.services, in.Key())
				r.Removed++
			} else {
				r.Skipped++
			}
			continue
		}
		if !ok {
			c.services[in.Key()] = in
			r.Added++
			continue
		}

		changed := false
		if in.Version != cur.Version {
			cur.Version = in.Version
			changed = true
		}
		if cur.Name == types.UnknownService && in.Name != types.UnknownService {
			cur.Name = in.Name
			changed = true
		}
		if changed {
			c.services[in.Key()] = cur
			r.Updated++
		} else {
			r.Unchanged++
		}
	}
	return r
}

// AddNote appends a timestamped note.
func (s *Store) AddNote(c *Context, text string) (*Context, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: note text is empty", types.ErrContractViolation)
	}
	return s.Update(c, func(next *Context) error {
		next.Notes = append(next.Notes, Note{Text: text, CreatedAt: s.now().UTC()})
		return nil
	})
}

// RecordHistory appends an action to the history.
func (s *Store) RecordHistory(c *Context, entry HistoryEntry) (*Context, error) {
	if strings.TrimSpace(entry.Kind) == "" {
		return nil, fmt.Errorf("%w: history entry has no kind", types.ErrContractViolation)
	}
	return s.Update(c, func(next *Context) error {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.At.IsZero() {
			entry.At = s.now().UTC()
		}
		next.History = append(next.History, entry)
		return nil
	})
}

// NewHistoryEntry builds an entry with a fresh ID.
func NewHistoryEntry(kind, summary string, at time.Time) HistoryEntry {
	return HistoryEntry{
		ID:      uuid.NewString(),
		Kind:    kind,
		Summary: summary,
		At:      at,
	}
}

// List returns the names of all persisted challenges, sorted.
// Records are not opened.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), recordExt)
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Summary is the light view used by the list table.
type Summary struct {
	Name      string
	Type      Type
	UpdatedAt time.Time
	Services  int
	Err       error
}

// Summaries loads every record for display. Unreadable records are
// reported through Summary.Err instead of aborting the listing.
func (s *Store) Summaries() ([]Summary, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		c, err := s.Load(name)
		if err != nil {
			out = append(out, Summary{Name: name, Err: err})
			continue
		}
		out = append(out, Summary{
			Name:      c.Name,
			Type:      c.Type,
			UpdatedAt: c.UpdatedAt,
			Services:  len(c.OpenServices()),
		})
	}
	return out, nil
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

func (s *Store) write(c *Context) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode challenge %s: %w", c.Name, err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(s.path(c.Name), data); err != nil {
		s.log.Error("write failed", zap.String("name", c.Name), zap.Error(err))
		return fmt.Errorf("failed to save challenge %s: %w", c.Name, err)
	}
	s.log.Debug("record written", zap.String("name", c.Name), zap.Int("bytes", len(data)))
	return nil
}

// writeFileAtomic writes to a temp file in the target directory, syncs it and
// renames it over path. A crash at any point leaves either the old or the new
// file, never a partial one.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
