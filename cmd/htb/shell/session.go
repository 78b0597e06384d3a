// Package shell implements the htb command language on top of the challenge
// store, the suggestion engine and the AI provider. The same Session backs
// the interactive REPL and the one-shot cobra subcommands.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"htbnerd/cmd/htb/ui"
	"htbnerd/internal/ai"
	"htbnerd/internal/challenge"
	"htbnerd/internal/logging"
	"htbnerd/internal/suggest"
	"htbnerd/internal/types"
)

// ErrNoChallenge is returned by commands that need an active challenge.
var ErrNoChallenge = errors.New("no challenge active: use 'start <name>' or 'use <name>'")

// Options configures a Session.
type Options struct {
	Store        *challenge.Store
	Engine       *suggest.Engine
	LLM          types.LLMClient
	Styles       ui.Styles
	ConciseLimit int
	AITimeout    time.Duration
}

// Session holds the explicit active-challenge handle. It is used from a
// single goroutine.
type Session struct {
	store        *challenge.Store
	engine       *suggest.Engine
	llm          types.LLMClient
	styles       ui.Styles
	renderer     *glamour.TermRenderer
	conciseLimit int
	aiTimeout    time.Duration
	log          *zap.Logger

	current *challenge.Context
}

// NewSession wires a session. Store is required; a nil engine uses the
// built-in rules and a nil LLM uses the offline stub.
func NewSession(o Options) (*Session, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("%w: session needs a store", types.ErrContractViolation)
	}
	if o.Engine == nil {
		o.Engine = suggest.NewEngine(nil)
	}
	if o.LLM == nil {
		o.LLM = ai.StubClient{}
	}
	if o.AITimeout <= 0 {
		o.AITimeout = 120 * time.Second
	}

	style := "dark"
	if !o.Styles.Theme.IsDark {
		style = "light"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	return &Session{
		store:        o.Store,
		engine:       o.Engine,
		llm:          o.LLM,
		styles:       o.Styles,
		renderer:     renderer,
		conciseLimit: o.ConciseLimit,
		aiTimeout:    o.AITimeout,
		log:          logging.Named(logging.CategoryShell),
	}, nil
}

// Current returns the active challenge, or nil.
func (s *Session) Current() *challenge.Context { return s.current }

// Prompt returns the REPL prompt prefix.
func (s *Session) Prompt() string {
	if s.current == nil {
		return "[no-chal] > "
	}
	return "[" + s.current.Name + "] > "
}

// Provider names the AI client in use.
func (s *Session) Provider() string { return s.llm.Name() }

func (s *Session) requireCurrent() (*challenge.Context, error) {
	if s.current == nil {
		return nil, ErrNoChallenge
	}
	return s.current, nil
}

// =============================================================================
// ETHICS ACKNOWLEDGEMENT
// =============================================================================

const ethicsFile = ".ethics_ack"

// EthicsNotice is shown before the first interactive use.
const EthicsNotice = "Use only on authorized HTB labs and targets. Nothing is executed for you: suggestions only."

func (s *Session) ethicsPath() string {
	return filepath.Join(s.store.Dir(), ethicsFile)
}

// EthicsAcknowledged reports whether the user already accepted the notice.
func (s *Session) EthicsAcknowledged() bool {
	_, err := os.Stat(s.ethicsPath())
	return err == nil
}

// AcknowledgeEthics records the acceptance.
func (s *Session) AcknowledgeEthics() error {
	if err := os.WriteFile(s.ethicsPath(), []byte("ack\n"), 0o644); err != nil {
		return fmt.Errorf("failed to record acknowledgement: %w", err)
	}
	return nil
}

// =============================================================================
// AI QUESTIONS
// =============================================================================

// Question is an AI request prepared against the active challenge. The
// REPL runs Answer off the update loop and then calls Record.
type Question struct {
	Mode      ai.Mode
	Text      string
	System    string
	Challenge string
}

// Prepare builds the grounded question for the active challenge.
func (s *Session) Prepare(mode ai.Mode, text string) (Question, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return Question{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, fmt.Errorf("usage: %s <question>", mode)
	}
	if mode != ai.ModeQuiz {
		mode = ai.ModeGeneral
	}
	return Question{
		Mode:      mode,
		Text:      text,
		System:    ai.SystemPrompt(mode, challenge.BuildPromptContext(c)),
		Challenge: c.Name,
	}, nil
}

// Answer calls the provider. It touches no session state and is safe to
// run from a tea.Cmd goroutine.
func (s *Session) Answer(ctx context.Context, q Question) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()
	return s.llm.CompleteWithSystem(ctx, q.System, q.Text)
}

// Record stores the exchange in the challenge history and returns the
// rendered answer.
func (s *Session) Record(q Question, answer string) (string, error) {
	c, err := s.requireCurrent()
	if err != nil {
		return "", err
	}
	if c.Name != q.Challenge {
		return "", fmt.Errorf("active challenge changed from %s to %s while waiting for the answer", q.Challenge, c.Name)
	}

	kind := challenge.KindAsk
	if q.Mode == ai.ModeQuiz {
		kind = challenge.KindQuiz
	}
	entry := challenge.NewHistoryEntry(kind, oneLine(q.Text, 80), time.Time{})
	entry.Question = q.Text
	entry.Answer = answer
	if _, err := s.store.RecordHistory(c, entry); err != nil {
		return "", err
	}
	s.log.Info("answer recorded", zap.String("challenge", c.Name), zap.String("mode", string(q.Mode)))

	return s.styles.Panel("AI ("+s.llm.Name()+")", s.renderMarkdown(answer), ui.Magenta), nil
}

// Ask prepares, answers and records a question synchronously.
func (s *Session) Ask(ctx context.Context, mode ai.Mode, text string) (string, error) {
	q, err := s.Prepare(mode, text)
	if err != nil {
		return "", err
	}
	answer, err := s.Answer(ctx, q)
	if err != nil {
		return "", err
	}
	return s.Record(q, answer)
}

func (s *Session) renderMarkdown(md string) string {
	out, err := s.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
