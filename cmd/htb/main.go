// Command htb is an advisory assistant for Hack The Box style challenges.
// Run without arguments to start the interactive shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"htbnerd/cmd/htb/shell"
	"htbnerd/cmd/htb/ui"
	"htbnerd/internal/ai"
	"htbnerd/internal/challenge"
	"htbnerd/internal/config"
	"htbnerd/internal/logging"
	"htbnerd/internal/rules"
	"htbnerd/internal/suggest"
)

// app carries the state shared by every command of one invocation.
type app struct {
	// Global flags
	verbose     bool
	userConfig  string
	projConfig  string
	dataDir     string
	provider    string
	rulesFile   string
	interactive bool

	logger *zap.Logger
	cfg    *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "htb",
		Short: "htb - interactive assistant for Hack The Box challenges",
		Long: `htb tracks per-challenge notes and detected services, ingests Nmap output
and suggests ranked next steps and copy-pasteable command cheatsheets.

It never runs scans or exploits for you: every command is advisory.

Run without arguments to start the interactive shell.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			logging.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.interactive = true
			s, err := a.session()
			if err != nil {
				return err
			}
			return shell.Run(s)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug output")
	pf.StringVar(&a.userConfig, "config", config.DefaultUserConfigPath(), "User config file")
	pf.StringVar(&a.projConfig, "project-config", config.DefaultProjectConfigPath(), "Project config file")
	pf.StringVar(&a.dataDir, "data-dir", "", "Data directory (overrides config and HTBNERD_DATA_DIR)")
	pf.StringVar(&a.provider, "provider", "", "AI provider: auto, openai, ollama, gemini, stub")
	pf.StringVar(&a.rulesFile, "rules", "", "Extra YAML rules file")

	root.AddCommand(
		a.startCmd(),
		a.listCmd(),
		a.showCmd(),
		a.noteCmd(),
		a.loadScanCmd(),
		a.suggestCmd(),
		a.nextCmd(),
		a.cheatsCmd(),
		a.askCmd("ask", ai.ModeGeneral, "Ask the AI a question in the context of a challenge"),
		a.askCmd("quiz", ai.ModeQuiz, "Ask the AI to answer a Starting Point quiz question"),
	)
	return root
}

// setup builds the console logger, loads configuration and starts file
// logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load(a.userConfig, a.projConfig)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.provider != "" {
		cfg.Provider = a.provider
	}
	if a.rulesFile != "" {
		cfg.RulesFile = a.rulesFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logging.Initialize(cfg.DataDir, cfg.Logging.Options()); err != nil {
		a.logger.Warn("file logging disabled", zap.Error(err))
	}
	logging.Boot("htb starting: data_dir=%s provider=%s", cfg.DataDir, cfg.ResolveProvider())
	cfg.LogSources()
	a.logger.Debug("configuration loaded",
		zap.Strings("sources", cfg.Sources()),
		zap.String("log_file", logging.File()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("provider", cfg.Provider),
		zap.String("rules_file", cfg.RulesFile))
	return nil
}

// session wires the store, the rules, the AI client and the styles.
func (a *app) session() (*shell.Session, error) {
	store, err := challenge.NewStore(a.cfg.ChallengesDir())
	if err != nil {
		return nil, err
	}
	catalog, err := rules.Load(a.cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	llm, err := ai.NewClient(a.cfg)
	if err != nil {
		if !a.interactive {
			return nil, err
		}
		// The shell stays usable for everything but ask/quiz.
		a.logger.Warn("AI provider unavailable, falling back to stub", zap.Error(err))
		llm = ai.StubClient{}
	}
	return shell.NewSession(shell.Options{
		Store:        store,
		Engine:       suggest.NewEngine(catalog),
		LLM:          llm,
		Styles:       ui.NewStyles(ui.ThemeFor(a.cfg.Theme)),
		ConciseLimit: a.cfg.ConciseLimit,
		AITimeout:    a.cfg.GetAITimeout(),
	})
}

// sessionFor opens the named challenge.
func (a *app) sessionFor(name string) (*shell.Session, error) {
	s, err := a.session()
	if err != nil {
		return nil, err
	}
	if _, err := s.Use(name); err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// ONE-SHOT COMMANDS
// =============================================================================

func (a *app) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <name> [type]",
		Short: "Start a new challenge (type: starting-point|machine|other)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			typ := ""
			if len(args) == 2 {
				typ = args[1]
			}
			return emit(cmd)(s.Start(args[0], typ))
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List challenges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			return emit(cmd)(s.List())
		},
	}
}

// challengeCmd builds a command whose first argument names the challenge.
func (a *app) challengeCmd(use, short string, args cobra.PositionalArgs, run func(s *shell.Session, cmd *cobra.Command, rest []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			s, err := a.sessionFor(argv[0])
			if err != nil {
				return err
			}
			return emit(cmd)(run(s, cmd, argv[1:]))
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return a.challengeCmd("show <name>", "Show a challenge's context", cobra.ExactArgs(1),
		func(s *shell.Session, _ *cobra.Command, _ []string) (string, error) { return s.Show() })
}

func (a *app) noteCmd() *cobra.Command {
	return a.challengeCmd("note <name> <text...>", "Add a note to a challenge", cobra.MinimumNArgs(2),
		func(s *shell.Session, _ *cobra.Command, rest []string) (string, error) {
			return s.Note(strings.Join(rest, " "))
		})
}

func (a *app) loadScanCmd() *cobra.Command {
	cmd := a.challengeCmd("load-scan <name> <path>", "Load Nmap XML or greppable output into a challenge", cobra.ExactArgs(2),
		func(s *shell.Session, _ *cobra.Command, rest []string) (string, error) { return s.LoadScan(rest[0]) })
	cmd.Aliases = []string{"load-nmap", "load_scan", "load_nmap"}
	return cmd
}

func (a *app) suggestCmd() *cobra.Command {
	return a.challengeCmd("suggest <name>", "Suggest next steps from known services", cobra.ExactArgs(1),
		func(s *shell.Session, _ *cobra.Command, _ []string) (string, error) { return s.Suggest() })
}

func (a *app) nextCmd() *cobra.Command {
	return a.challengeCmd("next <name>", "Show the top next steps", cobra.ExactArgs(1),
		func(s *shell.Session, _ *cobra.Command, _ []string) (string, error) { return s.Next() })
}

func (a *app) cheatsCmd() *cobra.Command {
	return a.challengeCmd("cheats <name>", "Show command templates for detected services", cobra.ExactArgs(1),
		func(s *shell.Session, _ *cobra.Command, _ []string) (string, error) { return s.Cheats() })
}

func (a *app) askCmd(verb string, mode ai.Mode, short string) *cobra.Command {
	return a.challengeCmd(verb+" <name> <question...>", short, cobra.MinimumNArgs(2),
		func(s *shell.Session, cmd *cobra.Command, rest []string) (string, error) {
			return s.Ask(cmd.Context(), mode, strings.Join(rest, " "))
		})
}

// emit writes a command's output to the command's stdout.
func emit(cmd *cobra.Command) func(string, error) error {
	return func(out string, err error) error {
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
