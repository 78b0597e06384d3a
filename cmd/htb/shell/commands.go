package shell

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"htbnerd/cmd/htb/ui"
	"htbnerd/internal/challenge"
	"htbnerd/internal/scan"
	"htbnerd/internal/types"
)

const timeLayout = "2006-01-02 15:04"

// Start creates a challenge, or switches to it when it already exists.
func (s *Session) Start(name, typ string) (string, error) {
	t, err := challenge.ParseType(typ)
	if err != nil {
		return "", err
	}
	if err := challenge.ValidateName(name); err != nil {
		return "", err
	}

	if s.store.Exists(name) {
		c, err := s.store.Load(name)
		if err != nil {
			return "", err
		}
		s.current = c
		return s.styles.Warning.Render(fmt.Sprintf("Challenge '%s' already exists. Switching to it.", name)), nil
	}

	c, err := s.store.Create(name, t)
	if err != nil {
		return "", err
	}
	s.current = c
	s.log.Info("challenge started", zap.String("name", name), zap.String("type", string(t)))
	return s.styles.Success.Render(fmt.Sprintf("Created challenge '%s' (%s).", name, t)), nil
}

// Use switches the active challenge.
func (s *Session) Use(name string) (string, error) {
	c, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", fmt.Errorf("challenge '%s' not found", name)
		}
		return "", err
	}
	s.current = c
	return s.styles.Success.Render(fmt.Sprintf("Switched to '%s'.", name)), nil
}

// List renders the challenge table.
func (s *Session) List() (string, error) {
	sums, err := s.store.Summaries()
	if err != nil {
		return "", err
	}
	t := ui.NewTable("Challenges", "Name", "Type", "Services", "Updated")
	for _, sum := range sums {
		if sum.Err != nil {
			t.AddRow(sum.Name, "corrupt", "-", "-")
			continue
		}
		t.AddRow(sum.Name, string(sum.Type), strconv.Itoa(sum.Services), sum.UpdatedAt.Local().Format(timeLayout))
	}
	return t.View(s.styles, "No challenges yet. Use 'start <name>'."), nil
}

// Show renders the active challenge.
func (s *Session) Show() (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.styles.Bold.Render("Type:"), c.Type)
	fmt.Fprintf(&b, "%s %s\n", s.styles.Bold.Render("Created:"), c.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(&b, "%s %s\n\n", s.styles.Bold.Render("Updated:"), c.UpdatedAt.Local().Format(timeLayout))

	st := ui.NewTable("Services", "Host", "Port", "Service", "Version", "State")
	for _, svc := range c.Services() {
		st.AddRow(svc.Host, fmt.Sprintf("%d/%s", svc.Port, svc.Protocol), svc.Name, svc.Version, string(svc.State))
	}
	b.WriteString(st.View(s.styles, "No services yet. Run 'load_scan <file>'."))
	b.WriteString("\n\n")

	b.WriteString(s.styles.Title.Render("Notes") + "\n")
	if len(c.Notes) == 0 {
		b.WriteString(s.styles.Muted.Render("No notes.") + "\n")
	}
	for _, n := range c.Notes {
		fmt.Fprintf(&b, "%s %s\n", s.styles.Muted.Render(n.CreatedAt.Local().Format(timeLayout)), n.Text)
	}

	if len(c.Artifacts) > 0 {
		b.WriteString("\n" + s.styles.Title.Render("Artifacts") + "\n")
		for _, kind := range slices.Sorted(maps.Keys(c.Artifacts)) {
			fmt.Fprintf(&b, "%s %s\n", s.styles.Bold.Render(kind+":"), c.Artifacts[kind])
		}
	}

	history := c.History
	if len(history) > challenge.PromptHistoryLimit {
		history = history[len(history)-challenge.PromptHistoryLimit:]
	}
	b.WriteString("\n" + s.styles.Title.Render("Recent actions") + "\n")
	for _, h := range history {
		fmt.Fprintf(&b, "%s %-9s %s\n", s.styles.Muted.Render(h.At.Local().Format(timeLayout)), h.Kind, h.Summary)
	}

	return s.styles.Panel(c.Name, b.String(), ui.Info), nil
}

// Note appends a note to the active challenge.
func (s *Session) Note(text string) (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("usage: note <text>")
	}
	if _, err := s.store.AddNote(c, text); err != nil {
		return "", err
	}
	return s.styles.Success.Render("Note added."), nil
}

// LoadScan parses an Nmap file and merges its open services.
func (s *Session) LoadScan(path string) (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", errors.New("usage: load_scan <path-to-xml-or-gnmap>")
	}
	path = expandHome(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	res, err := scan.ParseFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load scan: %w", err)
	}
	_, report, err := s.store.MergeScan(c, res.Services, "nmap", path)
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Loaded %d open services from %s (%d new, %d updated, %d unchanged).",
		len(res.Services), filepath.Base(path), report.Added, report.Updated, report.Unchanged)
	return s.styles.Success.Render(msg) + "\n" + s.styles.Muted.Render("Run 'suggest' or 'cheats'."), nil
}

// Suggest renders every ranked next step plus the general first steps.
func (s *Session) Suggest() (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}
	items := s.engine.Verbose(c)
	if len(items) == 0 {
		return s.styles.Warning.Render("No suggestions yet. Add notes or load a scan first."), nil
	}

	var panels []string
	if general := s.engine.General(c); len(general) > 0 {
		panels = append(panels, s.styles.Panel("General", bullets(general), ui.Success))
	}

	// Consecutive steps for the same service share a panel.
	var (
		title string
		lines []string
	)
	flush := func() {
		if len(lines) > 0 {
			panels = append(panels, s.styles.Panel(title, bullets(lines), ui.Success))
		}
		lines = nil
	}
	for _, it := range items {
		t := it.Service.Host + " " + it.Service.Label()
		if t != title {
			flush()
			title = t
		}
		lines = append(lines, it.Text)
	}
	flush()
	return strings.Join(panels, "\n"), nil
}

// Next renders the short deduplicated list of top steps.
func (s *Session) Next() (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}
	items := s.engine.Concise(c, s.conciseLimit)
	if len(items) == 0 {
		return s.styles.Warning.Render("No suggestions yet. Add notes or load a scan first."), nil
	}
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, it.Text, s.styles.Muted.Render("("+it.Service.Label()+")"))
	}
	return s.styles.Panel("Next steps", b.String(), ui.Success), nil
}

// Cheats renders ready-to-copy commands per detected service.
func (s *Session) Cheats() (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}
	sheet := s.engine.Cheatsheet(c)
	if len(sheet) == 0 {
		return s.styles.Warning.Render("No cheats available yet. Load services first."), nil
	}
	var panels []string
	for _, name := range sheet.Names() {
		var b strings.Builder
		for _, cmd := range sheet[name] {
			b.WriteString(s.styles.Command.Render(cmd) + "\n")
		}
		panels = append(panels, s.styles.Panel(name, b.String(), ui.Info))
	}
	return strings.Join(panels, "\n"), nil
}

// HelpText lists the shell commands.
const HelpText = `Commands:
  start <name> [type]    Start a new challenge (type: starting-point|machine|other)
  use <name>             Switch to an existing challenge
  list                   List challenges
  show                   Show current challenge context
  ask <question>         Ask the AI anything in the context of this challenge
  quiz <question>        Ask the AI to answer a Starting Point quiz question
  note <text>            Add a note to this challenge
  load_scan <path>       Load Nmap XML or greppable output (alias: load_nmap)
  suggest                Suggest next steps based on known services
  next                   Same as suggest but succinct
  cheats                 Show command templates for detected services
  help                   Show this help
  exit                   Exit the assistant`

// Help renders HelpText.
func (s *Session) Help() string {
	return s.styles.Panel("Help", HelpText, ui.Info)
}

func bullets(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("• " + l + "\n")
	}
	return b.String()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
