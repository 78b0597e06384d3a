package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"htbnerd/cmd/htb/ui"
	"htbnerd/internal/ai"
	"htbnerd/internal/challenge"
	"htbnerd/internal/rules"
	"htbnerd/internal/suggest"
	"htbnerd/internal/types"
)

type fakeLLM struct {
	answer string
	err    error
	system string
	user   string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) CompleteWithSystem(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.answer, f.err
}

const lameScan = "Host: 10.10.10.3 (lame.htb)\tPorts: 21/open/tcp//ftp//vsftpd 2.3.4/, 22/open/tcp//ssh//OpenSSH 4.7p1/, 445/open/tcp//microsoft-ds///, 3632/closed/tcp//distccd///\n"

func newTestSession(t *testing.T, llm types.LLMClient) *Session {
	t.Helper()
	store, err := challenge.NewStore(t.TempDir())
	require.NoError(t, err)
	s, err := NewSession(Options{
		Store:        store,
		Engine:       suggest.NewEngine(rules.Default()),
		LLM:          llm,
		Styles:       ui.NewStyles(ui.DarkTheme()),
		ConciseLimit: 3,
	})
	require.NoError(t, err)
	return s
}

func writeScan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lame.gnmap")
	require.NoError(t, os.WriteFile(path, []byte(lameScan), 0o644))
	return path
}

func TestCommandsNeedActiveChallenge(t *testing.T) {
	s := newTestSession(t, nil)
	for _, line := range []string{"show", "note hi", "load_scan x", "suggest", "next", "cheats", "ask what?"} {
		_, err := s.Dispatch(line)
		assert.ErrorIs(t, err, ErrNoChallenge, line)
	}
}

func TestStartUseList(t *testing.T) {
	s := newTestSession(t, nil)

	out, err := s.Start("meow", "sp")
	require.NoError(t, err)
	assert.Contains(t, out, "Created challenge 'meow' (starting_point)")
	assert.Equal(t, "[meow] > ", s.Prompt())

	out, err = s.Start("meow", "")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	_, err = s.Start("bad/name", "")
	assert.ErrorIs(t, err, types.ErrContractViolation)

	_, err = s.Start("lame", "")
	require.NoError(t, err)
	_, err = s.Use("meow")
	require.NoError(t, err)
	assert.Equal(t, "meow", s.Current().Name)

	_, err = s.Use("missing")
	assert.ErrorContains(t, err, "not found")

	out, err = s.List()
	require.NoError(t, err)
	assert.Contains(t, out, "lame")
	assert.Contains(t, out, "meow")
	assert.Contains(t, out, "starting_point")
}

func TestLoadScanSuggestAndCheats(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.Start("lame", "machine")
	require.NoError(t, err)

	out, err := s.Suggest()
	require.NoError(t, err)
	assert.Contains(t, out, "No suggestions yet")

	res, err := s.Dispatch("load_nmap " + writeScan(t))
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Loaded 3 open services")
	assert.Len(t, s.Current().Services(), 3)
	assert.Contains(t, s.Current().Artifacts["nmap"], "lame.gnmap")

	out, err = s.Suggest()
	require.NoError(t, err)
	assert.Contains(t, out, "Enumerate SMB shares anonymously")
	assert.Contains(t, out, "General")

	out, err = s.Next()
	require.NoError(t, err)
	assert.Contains(t, out, "1. Enumerate SMB shares anonymously")
	assert.NotContains(t, out, "4.")

	out, err = s.Cheats()
	require.NoError(t, err)
	assert.Contains(t, out, "smbclient -L //10.10.10.3 -N")
	assert.Contains(t, out, "ftp 10.10.10.3 21")

	out, err = s.Show()
	require.NoError(t, err)
	assert.Contains(t, out, "vsftpd 2.3.4")
	assert.Contains(t, out, "load_scan")

	reloaded, err := s.store.Load("lame")
	require.NoError(t, err)
	assert.Equal(t, s.Current().Services(), reloaded.Services())
}

func TestLoadScan_Errors(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.Start("lame", "")
	require.NoError(t, err)

	_, err = s.LoadScan("")
	assert.ErrorContains(t, err, "usage")

	_, err = s.LoadScan(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
	assert.Empty(t, s.Current().Services())
}

func TestNote(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.Start("lame", "")
	require.NoError(t, err)

	res, err := s.Dispatch("note anonymous ftp allowed")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Note added")
	require.Len(t, s.Current().Notes, 1)
	assert.Equal(t, "anonymous ftp allowed", s.Current().Notes[0].Text)

	_, err = s.Dispatch("note")
	assert.ErrorContains(t, err, "usage")
}

func TestAskRecordsHistory(t *testing.T) {
	llm := &fakeLLM{answer: "Try `smbclient -L //10.10.10.3 -N`"}
	s := newTestSession(t, llm)
	_, err := s.Start("lame", "")
	require.NoError(t, err)
	_, err = s.LoadScan(writeScan(t))
	require.NoError(t, err)

	out, err := s.Ask(context.Background(), ai.ModeQuiz, "Which port runs SMB?")
	require.NoError(t, err)
	assert.Contains(t, out, "smbclient")

	assert.Equal(t, "Which port runs SMB?", llm.user)
	assert.Contains(t, llm.system, "Starting Point")
	assert.Contains(t, llm.system, "10.10.10.3 445/tcp microsoft-ds")

	last := s.Current().History[len(s.Current().History)-1]
	assert.Equal(t, challenge.KindQuiz, last.Kind)
	assert.Equal(t, "Which port runs SMB?", last.Question)
	assert.Equal(t, llm.answer, last.Answer)

	reloaded, err := s.store.Load("lame")
	require.NoError(t, err)
	assert.Len(t, reloaded.History, len(s.Current().History))
}

func TestAskProviderErrorRecordsNothing(t *testing.T) {
	s := newTestSession(t, &fakeLLM{err: errors.New("boom")})
	_, err := s.Start("lame", "")
	require.NoError(t, err)
	before := len(s.Current().History)

	_, err = s.Ask(context.Background(), ai.ModeGeneral, "hello")
	assert.ErrorContains(t, err, "boom")
	assert.Len(t, s.Current().History, before)

	_, err = s.Ask(context.Background(), ai.ModeGeneral, "  ")
	assert.ErrorContains(t, err, "usage")
}

func TestRecordRejectsSwitchedChallenge(t *testing.T) {
	s := newTestSession(t, nil)
	_, err := s.Start("one", "")
	require.NoError(t, err)
	q, err := s.Prepare(ai.ModeGeneral, "q")
	require.NoError(t, err)

	_, err = s.Start("two", "")
	require.NoError(t, err)
	_, err = s.Record(q, "a")
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	s := newTestSession(t, nil)

	res, err := s.Dispatch("   ")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	res, err = s.Dispatch("HELP")
	require.NoError(t, err)
	assert.Contains(t, res.Output, "load_scan <path>")

	res, err = s.Dispatch("exit")
	require.NoError(t, err)
	assert.True(t, res.Quit)

	_, err = s.Dispatch("hack the planet")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = s.Dispatch("start")
	assert.ErrorContains(t, err, "usage")

	_, err = s.Dispatch("start lame machine")
	require.NoError(t, err)
	res, err = s.Dispatch("ask what now?")
	require.NoError(t, err)
	require.NotNil(t, res.Question)
	assert.Equal(t, ai.ModeGeneral, res.Question.Mode)
	assert.Equal(t, "what now?", res.Question.Text)
	assert.Equal(t, "lame", res.Question.Challenge)
}

func TestEthicsAcknowledgement(t *testing.T) {
	s := newTestSession(t, nil)
	assert.False(t, s.EthicsAcknowledged())
	require.NoError(t, s.AcknowledgeEthics())
	assert.True(t, s.EthicsAcknowledged())

	names, err := s.store.List()
	require.NoError(t, err)
	assert.Empty(t, names, "the acknowledgement file is not a challenge")
}

func TestModel_EthicsThenCommand(t *testing.T) {
	s := newTestSession(t, nil)
	m := NewModel(s)
	require.True(t, m.needAck)

	m.input.SetValue("y")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.False(t, m.needAck)
	assert.True(t, s.EthicsAcknowledged())

	m.input.SetValue("start lame")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, s.Current())
	assert.Equal(t, "[lame] > ", m.input.Prompt)
}

func TestModel_EthicsDeclinedQuits(t *testing.T) {
	s := newTestSession(t, nil)
	m := NewModel(s)

	m.input.SetValue("n")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, next.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.False(t, s.EthicsAcknowledged())
}

func TestModel_AskLocksInputUntilAnswer(t *testing.T) {
	s := newTestSession(t, &fakeLLM{answer: "look at port 445"})
	require.NoError(t, s.AcknowledgeEthics())
	_, err := s.Start("lame", "")
	require.NoError(t, err)

	m := NewModel(s)
	m.input.SetValue("ask where to start?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	m.input.SetValue("note should be ignored")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Empty(t, s.Current().Notes)

	q, err := s.Prepare(ai.ModeGeneral, "where to start?")
	require.NoError(t, err)
	next, _ = m.Update(answerMsg{q: q, answer: "look at port 445"})
	m = next.(Model)
	assert.False(t, m.busy)

	last := s.Current().History[len(s.Current().History)-1]
	assert.Equal(t, challenge.KindAsk, last.Kind)
	assert.Equal(t, "look at port 445", last.Answer)
}
