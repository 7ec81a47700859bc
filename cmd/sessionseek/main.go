package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asheshgoplani/sessionseek/internal/config"
	"github.com/asheshgoplani/sessionseek/internal/logging"
	"github.com/asheshgoplani/sessionseek/internal/search"
	"github.com/asheshgoplani/sessionseek/internal/statedb"
	"github.com/asheshgoplani/sessionseek/internal/ui"
)

const Version = "0.4.0"

var cliLog = logging.ForComponent(logging.CompCLI)

func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal capabilities.
func initColorProfile() {
	// SESSIONSEEK_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("SESSIONSEEK_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	term := os.Getenv("TERM")
	for _, t := range []string{"xterm-256color", "screen-256color", "tmux-256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	// Respect a weaker detected profile (basic terminals, pipes); otherwise
	// ANSI256 works over SSH and in older emulators.
	if p := termenv.EnvColorProfile(); p > termenv.ANSI256 {
		lipgloss.SetColorProfile(p)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	dbPath, args := extractDBFlag(os.Args[1:])

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("sessionseek v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	cfg, cfgErr := config.Load()
	cleanup := setupLogging(cfg)
	defer cleanup()
	defer recoverAndDump()
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &cliEnv{cfg: cfg, dbPath: dbPath}

	cmd := "tui"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	cliLog.Debug("command_start", slog.String("command", cmd))

	var code int
	switch cmd {
	case "search", "s":
		code = handleSearch(ctx, env, args)
	case "validate":
		code = handleValidate(env, args)
	case "highlight", "hl":
		code = handleHighlight(env, args)
	case "list", "ls":
		code = handleList(ctx, env, args)
	case "show":
		code = handleShow(ctx, env, args)
	case "import":
		code = handleImport(ctx, env, args)
	case "tui":
		code = handleTUI(ctx, env, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		printHelp()
		code = 2
	}
	if code != 0 {
		cleanup()
		os.Exit(code)
	}
}

// cliEnv carries the per-invocation settings shared by commands.
type cliEnv struct {
	cfg    *config.Config
	dbPath string
}

// openDB opens and migrates the session database.
func (e *cliEnv) openDB() (*statedb.StateDB, error) {
	path := e.dbPath
	if path == "" {
		p, err := config.DatabasePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	db, err := statedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newService wires the search service over db using the configured tunables.
func (e *cliEnv) newService(db *statedb.StateDB, caseSensitive bool) *search.Service {
	return search.NewService(statedb.NewRepository(db),
		search.WithConfig(e.cfg.Search.EngineConfig()),
		search.WithHighlightOptions(e.cfg.Highlight.Options(caseSensitive)),
	)
}

// extractDBFlag pulls a global --db path out of args.
func extractDBFlag(args []string) (string, []string) {
	var dbPath string
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--db=") {
			dbPath = strings.TrimPrefix(arg, "--db=")
			continue
		}
		if arg == "--db" && i+1 < len(args) {
			dbPath = args[i+1]
			i++
			continue
		}
		remaining = append(remaining, arg)
	}
	return dbPath, remaining
}

// setupLogging initializes structured logging. Logs go to the data
// directory only when SESSIONSEEK_DEBUG is set; otherwise they are
// discarded so the TUI is not disturbed.
func setupLogging(cfg *config.Config) func() {
	debugMode := os.Getenv("SESSIONSEEK_DEBUG") != ""
	var dir string
	if debugMode {
		if d, err := config.Dir(); err == nil {
			dir = d
		}
	}
	logCfg := cfg.Logs.LoggingConfig(dir, debugMode)
	if debugMode && logCfg.Level == "" {
		logCfg.Level = "debug"
	}
	logging.Init(logCfg)

	// Route the standard library logger (ours and dependencies') through slog.
	log.SetFlags(0)
	log.SetOutput(logging.NewBridgeWriter(logging.CompCLI))

	if debugMode && dir != "" {
		watchDumpSignal(dir)
	}
	return logging.Shutdown
}

// watchDumpSignal dumps the log ring buffer on SIGUSR1.
func watchDumpSignal(dir string) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			dumpPath := filepath.Join(dir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				cliLog.Error("crash_dump_failed", slog.String("error", err.Error()))
			} else {
				cliLog.Info("crash_dump_written", slog.String("path", dumpPath))
			}
		}
	}()
}

// recoverAndDump logs a panic, writes the ring buffer next to the logs and
// exits non-zero.
func recoverAndDump() {
	r := recover()
	if r == nil {
		return
	}
	cliLog.Error("panic",
		slog.String("value", fmt.Sprint(r)),
		slog.String("stack", string(debug.Stack())))
	if dir, err := config.Dir(); err == nil {
		dumpPath := filepath.Join(dir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
		if err := logging.DumpRingBuffer(dumpPath); err == nil {
			fmt.Fprintf(os.Stderr, "crash log written to %s\n", dumpPath)
		}
	}
	logging.Shutdown()
	fmt.Fprintf(os.Stderr, "panic: %v\n", r)
	os.Exit(2)
}

func printHelp() {
	fmt.Printf("sessionseek v%s\n", Version)
	fmt.Println("Search saved chat sessions")
	fmt.Println()
	fmt.Println("Usage: sessionseek [--db path] [command]")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --db <path>      Session database (default: ~/.sessionseek/sessions.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none), tui           Interactive search")
	fmt.Println("  search, s <query>     Search sessions")
	fmt.Println("  validate <query>      Check query syntax")
	fmt.Println("  highlight <text>      Highlight terms in text")
	fmt.Println("  list, ls              List sessions")
	fmt.Println("  show <id|title>       Show a session")
	fmt.Println("  import <file.json>    Import sessions from a JSON export")
	fmt.Println("  version               Show version")
	fmt.Println("  help                  Show this help")
	fmt.Println()
	fmt.Println("Query Syntax:")
	fmt.Println("  paris tower           Both words (AND)")
	fmt.Println("  paris | rome          Either word (OR)")
	fmt.Println(`  "eiffel tower"        Exact phrase`)
	fmt.Println("  title:paris           Match in titles only")
	fmt.Println("  title:(paris | rome)  Group under a title scope")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SESSIONSEEK_HOME      Data directory (default: ~/.sessionseek)")
	fmt.Println("  SESSIONSEEK_DEBUG     Write debug logs to the data directory")
	fmt.Println("  SESSIONSEEK_COLOR     truecolor, 256, 16 or none")
}

// handleTUI runs the interactive search screen.
func handleTUI(ctx context.Context, env *cliEnv, args []string) int {
	fs := newFlagSet("tui", "[query]", "Interactive search. Enter on an expanded result prints its ID.")
	noWatch := fs.Bool("no-watch", false, "Do not reload when the database changes")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}

	db, err := env.openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	opts := ui.Options{
		Search:       env.cfg.Search.SearchOptions(),
		Limit:        env.cfg.Search.GetResultLimit(),
		InitialQuery: strings.Join(fs.Args(), " "),
	}

	if !*noWatch {
		w := statedb.NewWatcher(db)
		w.Start()
		defer w.Close()
		opts.Changes = w.Changes()
	}

	ui.InitTheme(env.cfg.ResolveTheme())
	if env.cfg.GetTheme() == "system" {
		if tw := ui.NewThemeWatcher(ctx); tw != nil {
			defer tw.Close()
			opts.ThemeChanges = tw.Changes()
		}
	}

	svc := env.newService(db, opts.Search.CaseSensitive)
	selected, err := ui.Run(ctx, svc, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if selected != nil {
		fmt.Println(selected.SessionID)
	}
	return 0
}
