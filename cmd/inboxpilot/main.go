// InboxPilot Daemon - priority scoring and project assignment for classified email
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inboxpilot/inboxpilot/internal/config"
	"github.com/inboxpilot/inboxpilot/internal/engine"
	"github.com/inboxpilot/inboxpilot/internal/logging"
	"github.com/inboxpilot/inboxpilot/internal/scheduler"
	"github.com/inboxpilot/inboxpilot/internal/storage"
)

var (
	dataDir    string
	configPath string
	debugMode  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inboxpilot",
		Short: "InboxPilot - scores your classified email and files it into projects",
		RunE:  runDaemon,
	}

	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".inboxpilot")

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir, "Data directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation pass over all pending emails and exit",
		RunE:  runEvaluate,
	}
	rootCmd.AddCommand(evaluateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *engine.Runner, *storage.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if debugMode || cfg.Features.DebugMode {
		logging.SetLevel(logging.DEBUG)
	}

	dbPath := filepath.Join(cfg.DataDir, "inboxpilot.db")
	db, err := storage.Open(storage.Config{Path: dbPath})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	runner := engine.NewRunner(db, engine.RunConfig{
		BatchSize:          cfg.Engine.BatchSize,
		AccountParallelism: cfg.Engine.AccountParallelism,
		CacheTTL:           time.Duration(cfg.Engine.CacheTTL),
	})

	return cfg, runner, db, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("🚀 Starting InboxPilot Daemon...")

	cfg, runner, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.Features.EnableScheduler {
		fmt.Println("⚠️  Scheduler disabled - run `inboxpilot evaluate` manually")
		return nil
	}

	sched := scheduler.NewScheduler()
	task := scheduler.IntervalTask("engine.evaluate", "Evaluate pending emails",
		time.Duration(cfg.Engine.Interval), func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		})
	if err := sched.Register(task); err != nil {
		return fmt.Errorf("failed to register evaluation task: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	fmt.Printf("⏱  Evaluating every %s\n", time.Duration(cfg.Engine.Interval))

	// Run once immediately so a fresh start doesn't wait a full interval
	if err := sched.RunNow("engine.evaluate"); err != nil {
		logging.WithField("error", err).Warn("initial evaluation failed to start")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\n👋 Shutting down...")
	return sched.Stop()
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	_, runner, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("✅ Evaluated %d emails across %d accounts: %d links created, %d failures (%s)\n",
		report.Emails, report.Accounts, report.LinksCreated, report.Failures, report.Elapsed)
	return nil
}
