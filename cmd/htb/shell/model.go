package shell

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"htbnerd/cmd/htb/ui"
)

// answerMsg carries a provider reply back into the update loop.
type answerMsg struct {
	q      Question
	answer string
	err    error
}

// Model is the bubbletea REPL. Output is printed above the prompt with
// tea.Println so the terminal scrollback keeps the whole session.
type Model struct {
	session *Session
	styles  ui.Styles
	input   textinput.Model
	spinner spinner.Model

	ctx    context.Context
	cancel context.CancelFunc

	busy     bool // an AI call is in flight; input is locked
	needAck  bool // waiting for the ethics confirmation
	quitting bool
}

// NewModel builds the REPL for a session.
func NewModel(s *Session) Model {
	ti := textinput.New()
	ti.Placeholder = "help"
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 100
	ti.PromptStyle = s.styles.Prompt
	ti.TextStyle = s.styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.styles.Spinner

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		session: s,
		styles:  s.styles,
		input:   ti,
		spinner: sp,
		ctx:     ctx,
		cancel:  cancel,
		needAck: !s.EthicsAcknowledged(),
	}
	m.refreshPrompt()
	return m
}

func (m *Model) refreshPrompt() {
	if m.needAck {
		m.input.Prompt = "Confirm you will only use this ethically and legally? [Y/n] "
		m.input.Placeholder = ""
		return
	}
	m.input.Prompt = m.session.Prompt()
	m.input.Placeholder = "help"
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tea.Println(m.styles.Banner())}
	if m.needAck {
		cmds = append(cmds, tea.Println(m.styles.Panel("Ethics", EthicsNotice, ui.Warning)))
	}
	return tea.Sequence(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m.quit("Bye!")
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.input.Width = max(20, msg.Width-len(m.input.Prompt)-2)
		return m, nil

	case answerMsg:
		m.busy = false
		m.input.Focus()
		if msg.err != nil {
			return m, tea.Println(m.styles.Error.Render("AI error: " + msg.err.Error()))
		}
		out, err := m.session.Record(msg.q, msg.answer)
		if err != nil {
			return m, tea.Println(m.styles.Error.Render(err.Error()))
		}
		return m, tea.Println(out)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	echo := tea.Println(m.styles.Prompt.Render(m.input.Prompt) + line)

	if m.needAck {
		switch strings.ToLower(line) {
		case "", "y", "yes":
			m.needAck = false
			m.refreshPrompt()
			if err := m.session.AcknowledgeEthics(); err != nil {
				return m, tea.Sequence(echo, tea.Println(m.styles.Error.Render(err.Error())))
			}
			return m, echo
		default:
			m2, quit := m.quit("Exiting.")
			return m2, tea.Sequence(echo, quit)
		}
	}

	if line == "" {
		return m, nil
	}

	res, err := m.session.Dispatch(line)
	m.refreshPrompt()
	if err != nil {
		return m, tea.Sequence(echo, tea.Println(m.styles.Error.Render(err.Error())))
	}
	if res.Quit {
		m2, quit := m.quit(res.Output)
		return m2, tea.Sequence(echo, quit)
	}
	if res.Question != nil {
		m.busy = true
		m.input.Blur()
		return m, tea.Batch(echo, m.spinner.Tick, m.ask(*res.Question))
	}
	if res.Output == "" {
		return m, echo
	}
	return m, tea.Sequence(echo, tea.Println(res.Output))
}

// ask runs the provider call off the update loop. Only the session's
// read-only Answer is touched here; the result is recorded on answerMsg.
func (m Model) ask(q Question) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		answer, err := s.Answer(ctx, q)
		return answerMsg{q: q, answer: answer, err: err}
	}
}

func (m Model) quit(farewell string) (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Sequence(tea.Println(m.styles.Bold.Render(farewell)), tea.Quit)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.busy {
		return m.spinner.View() + " " + m.styles.Muted.Render("asking "+m.session.Provider()+"...")
	}
	return m.input.View()
}

// Run starts the interactive shell and blocks until the user exits.
func Run(s *Session) error {
	_, err := tea.NewProgram(NewModel(s)).Run()
	return err
}
