package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"htbnerd/internal/ai"
)

const lameScan = "Host: 10.10.10.3 (lame.htb)\tPorts: 21/open/tcp//ftp//vsftpd 2.3.4/, 445/open/tcp//microsoft-ds///\n"

// run executes the CLI against an isolated data directory.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HTBNERD_PROVIDER", "stub")
	t.Setenv("HTBNERD_RULES", "")

	none := filepath.Join(t.TempDir(), "none.yaml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", none, "--project-config", none, "--data-dir", dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"start", "list", "show", "note", "load-scan", "suggest", "next", "cheats", "ask", "quiz"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Fatalf("expected subcommand %q, got err=%v", name, err)
		}
	}
	if cmd, _, err := root.Find([]string{"load-nmap"}); err != nil || cmd.Name() != "load-scan" {
		t.Fatalf("expected load-nmap alias for load-scan, got %v", err)
	}
	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Fatalf("expected --verbose flag")
	}
}

func TestStartListAndLoadScan(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, dataDir, "start", "lame", "machine")
	if err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	if !strings.Contains(out, "Created challenge 'lame'") {
		t.Fatalf("expected creation message, got: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "challenges", "lame.json")); err != nil {
		t.Fatalf("expected challenge file: %v", err)
	}

	out, err = run(t, dataDir, "list")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if !strings.Contains(out, "lame") || !strings.Contains(out, "machine") {
		t.Fatalf("expected lame in list, got: %s", out)
	}

	scanPath := filepath.Join(t.TempDir(), "lame.gnmap")
	if err := os.WriteFile(scanPath, []byte(lameScan), 0o644); err != nil {
		t.Fatalf("write scan: %v", err)
	}
	out, err = run(t, dataDir, "load-nmap", "lame", scanPath)
	if err != nil {
		t.Fatalf("load-nmap returned error: %v", err)
	}
	if !strings.Contains(out, "Loaded 2 open services") {
		t.Fatalf("expected load summary, got: %s", out)
	}

	out, err = run(t, dataDir, "cheats", "lame")
	if err != nil {
		t.Fatalf("cheats returned error: %v", err)
	}
	if !strings.Contains(out, "smbclient -L //10.10.10.3 -N") {
		t.Fatalf("expected rendered smb cheat, got: %s", out)
	}

	out, err = run(t, dataDir, "next", "lame")
	if err != nil {
		t.Fatalf("next returned error: %v", err)
	}
	if !strings.Contains(out, "1. ") {
		t.Fatalf("expected numbered steps, got: %s", out)
	}
}

func TestNoteAndAskUseNamedChallenge(t *testing.T) {
	dataDir := t.TempDir()
	if _, err := run(t, dataDir, "start", "meow", "sp"); err != nil {
		t.Fatalf("start returned error: %v", err)
	}

	if _, err := run(t, dataDir, "note", "meow", "telnet", "root", "no", "password"); err != nil {
		t.Fatalf("note returned error: %v", err)
	}
	out, err := run(t, dataDir, "show", "meow")
	if err != nil {
		t.Fatalf("show returned error: %v", err)
	}
	if !strings.Contains(out, "telnet root no password") {
		t.Fatalf("expected note in show output, got: %s", out)
	}

	if _, err := run(t, dataDir, "quiz", "meow", "What", "does", "TELNET", "stand", "for?"); err != nil {
		t.Fatalf("quiz returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dataDir, "challenges", "meow.json"))
	if err != nil {
		t.Fatalf("read challenge: %v", err)
	}
	if !strings.Contains(string(data), "What does TELNET stand for?") || !strings.Contains(string(data), ai.StubMessage) {
		t.Fatalf("expected quiz recorded in history, got: %s", data)
	}
}

func TestUnknownChallenge(t *testing.T) {
	_, err := run(t, t.TempDir(), "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestInvalidProviderFlag(t *testing.T) {
	_, err := run(t, t.TempDir(), "--provider", "bogus", "list")
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
