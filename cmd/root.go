package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sqlstress/internal/banner"
	"sqlstress/internal/cli"
	"sqlstress/internal/config"
	"sqlstress/internal/pool"
	"sqlstress/internal/tui/app"
)

var (
	cfgFile  string
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "sqlstress",
	Short: "sqlstress - SQL load testing tool",
	Long: `
sqlstress runs one SQL statement many times over a connection pool and
reports latency percentiles, throughput and errors.

It supports three modes:
1. TUI Mode (Default): Interactive Terminal UI
2. CLI Mode (Headless): pass --sql for CI/CD usage
3. Web Mode: sqlstress serve`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(viper.GetViper(), cfgFile); err != nil {
			return err
		}
		settings = config.Load(viper.GetViper())
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("sql") {
			return runHeadless(cmd.OutOrStdout())
		}
		return runTUI()
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		_ = cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, dummyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sqlstress.yaml)")
	pf.String("driver", pool.DriverSQLite, "Database driver (sqlite3, duckdb)")
	pf.String("dsn", "sqlstress.db", "Data source name (also read from DB_URL)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	mustBind(config.KeyDriver, pf.Lookup("driver"))
	mustBind(config.KeyDSN, pf.Lookup("dsn"))
	mustBind(config.KeyLogLevel, pf.Lookup("log-level"))

	f := rootCmd.Flags()
	f.String("sql", "", "SQL to execute (enables CLI mode)")
	f.IntP("iterations", "n", 50, "Total executions")
	f.IntP("concurrency", "c", 10, "Parallel workers")
	f.Int("delay", 0, "Delay before each execution (ms)")
	f.Int("timeout", 30, "Per-call timeout in seconds")
	f.String("mode", "scalar", "Result mode (none, scalar, rows)")
	f.Int("max-rows", 10, "Sample rows kept for the whole run")
	f.Float64("rate", 0, "Global pacing in queries per second (0 = unpaced)")
	f.Bool("template", false, "Render the SQL as a template per iteration")
	f.StringP("out", "o", "", "Output filename prefix for auto-reporting")

	for key, name := range map[string]string{
		config.KeyRunSQL:         "sql",
		config.KeyRunIterations:  "iterations",
		config.KeyRunConcurrency: "concurrency",
		config.KeyRunDelayMs:     "delay",
		config.KeyRunTimeoutSec:  "timeout",
		config.KeyRunMode:        "mode",
		config.KeyRunMaxRows:     "max-rows",
		config.KeyRunRate:        "rate",
		config.KeyRunTemplate:    "template",
		config.KeyRunOut:         "out",
	} {
		mustBind(key, f.Lookup(name))
	}
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func openPool(ctx context.Context, logger *slog.Logger) (*pool.DB, error) {
	ps := settings.Pool()
	ps.Logger = logger
	db, err := pool.Open(ctx, ps)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", ps.Driver, err)
	}
	logger.Info("pool opened",
		"name", db.Name(),
		"driver", db.Driver(),
		"dsn", pool.MaskDSN(db.DSN()),
	)
	return db, nil
}

func targetLine() string {
	server, database := pool.Target(settings.Driver, settings.DSN)
	return fmt.Sprintf("%s / %s (%s)", server, database, settings.Driver)
}

func warn(logger *slog.Logger) {
	for _, w := range settings.Warnings {
		logger.Warn("config", "warning", w)
	}
}

// --- Runners ---

func runTUI() error {
	logOut := io.Discard
	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := settings.NewLogger(logOut)
	slog.SetDefault(logger)
	warn(logger)

	db, err := openPool(context.Background(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	m := app.NewModel(db, settings.RunDefaults(), targetLine(), logger)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func runHeadless(w io.Writer) error {
	logger := settings.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	warn(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openPool(ctx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = cli.Start(ctx, w, settings.RunDefaults(), db, cli.Options{
		OutPrefix: settings.OutPrefix,
		Target:    targetLine(),
		Progress:  true,
	})
	return err
}
