package shell

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"htbnerd/internal/ai"
)

// Result is the outcome of one shell line.
type Result struct {
	Output string
	Quit   bool
	// Question is set for ask/quiz; the caller runs it and then calls Record.
	Question *Question
}

// ErrUnknownCommand is returned for unrecognised verbs.
var ErrUnknownCommand = errors.New("unknown command")

// Dispatch parses and runs one line of shell input.
func (s *Session) Dispatch(line string) (Result, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}, nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	s.log.Debug("dispatch", zap.String("verb", verb), zap.Int("args", len(args)))

	var (
		out string
		err error
	)
	switch verb {
	case "exit", "quit", ":q":
		return Result{Output: "Bye!", Quit: true}, nil
	case "help", "?":
		out = s.Help()
	case "start":
		if len(args) == 0 || len(args) > 2 {
			return Result{}, errors.New("usage: start <name> [type]")
		}
		typ := ""
		if len(args) == 2 {
			typ = args[1]
		}
		out, err = s.Start(args[0], typ)
	case "use":
		if len(args) != 1 {
			return Result{}, errors.New("usage: use <name>")
		}
		out, err = s.Use(args[0])
	case "list", "ls":
		out, err = s.List()
	case "show":
		out, err = s.Show()
	case "note":
		out, err = s.Note(rest)
	case "load_scan", "load_nmap":
		out, err = s.LoadScan(rest)
	case "suggest":
		out, err = s.Suggest()
	case "next":
		out, err = s.Next()
	case "cheats":
		out, err = s.Cheats()
	case "ask", "quiz":
		mode := ai.ModeGeneral
		if verb == "quiz" {
			mode = ai.ModeQuiz
		}
		q, err := s.Prepare(mode, rest)
		if err != nil {
			return Result{}, err
		}
		return Result{Question: &q}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s (type 'help')", ErrUnknownCommand, verb)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out}, nil
}
