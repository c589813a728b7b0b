package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"emissionScope/internal/config"
	"emissionScope/internal/storage"
	"emissionScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "emissions",
		Short:        "Reward emission accrual engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("state-file", "./data/emissions.json", "JSON state file path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN (overrides state file)")
	root.PersistentFlags().String("source", "", "payout source address")
	root.PersistentFlags().String("now", "", "clock override (unix seconds or RFC3339)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("journal-file", "", "JSONL settlement journal path (disabled when empty)")

	advanceCmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance emission stream indexes to the current time",
		RunE:  runAdvance,
	}
	advanceCmd.Flags().String("stream", "", "stream key (0xASSET:liability|supply), all streams when empty")
	root.AddCommand(advanceCmd)

	accrueCmd := &cobra.Command{
		Use:   "accrue",
		Short: "Reconcile a user's snapshot against a stream without claiming",
		RunE:  runAccrue,
	}
	accrueCmd.Flags().String("user", "", "user address")
	accrueCmd.Flags().String("stream", "", "stream key (0xASSET:liability|supply)")
	root.AddCommand(accrueCmd)

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim accrued emissions across streams for a user",
		RunE:  runClaim,
	}
	claimCmd.Flags().String("user", "", "claiming user address")
	claimCmd.Flags().String("to", "", "payout recipient address (defaults to user)")
	claimCmd.Flags().StringSlice("streams", nil, "stream keys (comma-separated)")
	root.AddCommand(claimCmd)

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Preview backstop share/token conversions",
		RunE:  runConvert,
	}
	convertCmd.Flags().String("pool-shares", "0", "pool total shares")
	convertCmd.Flags().String("pool-tokens", "0", "pool total tokens")
	convertCmd.Flags().String("shares", "", "shares to price in tokens")
	convertCmd.Flags().String("tokens", "", "tokens to price in shares")
	root.AddCommand(convertCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv builds the shared pieces every subcommand needs: merged config,
// logger, clock, and an open store.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	store   storage.Store
	journal *storage.Journal
	now     func() uint64
	flush   func() error
	close   func()
}

// record appends events to the settlement journal when one is configured.
func (e *env) record(events ...storage.JournalEvent) error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Append(events)
}

func loadEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	now := func() uint64 { return uint64(time.Now().Unix()) }
	if cfg.Now != "" {
		fixed, err := config.ParseTimestamp(cfg.Now)
		if err != nil {
			return nil, fmt.Errorf("parse now: %w", err)
		}
		now = func() uint64 { return fixed }
	}

	e := &env{cfg: cfg, logger: logger, now: now, flush: func() error { return nil }, close: func() {}}
	if cfg.JournalFile != "" {
		e.journal = storage.NewJournal(cfg.JournalFile)
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Debug("using postgres store", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
		e.store = store
		e.close = store.Close
		return e, nil
	}

	store, err := storage.OpenFile(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	logger.Debug("using file store", zap.String("state_file", cfg.StateFile))
	e.store = store
	e.flush = store.Flush
	return e, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
