package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/gaugehub/gauged/internal/config"
	"github.com/gaugehub/gauged/internal/engine"
	"github.com/gaugehub/gauged/internal/escrow"
	"github.com/gaugehub/gauged/internal/server"
	"github.com/gaugehub/gauged/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	esc, err := escrow.NewClient(cfg.Escrow)
	if err != nil {
		return fmt.Errorf("escrow client: %w", err)
	}

	eng := engine.New(db, esc)
	if err := eng.Init(cmd.Context(), store.ControllerConfig{
		Owner:         cfg.Controller.Owner,
		RewardToken:   cfg.Controller.RewardToken,
		EscrowAddr:    cfg.Controller.EscrowAddr,
		PeriodSeconds: cfg.Controller.PeriodSeconds,
		VoteDelay:     cfg.Controller.VoteDelay,
	}); err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	var sched *cron.Cron
	if cfg.Compaction.Enabled {
		sched = cron.New()
		_, err := sched.AddFunc(cfg.Compaction.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := eng.Compact(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "compaction: %v\n", err)
			}
		})
		if err != nil {
			return fmt.Errorf("compaction schedule %q: %w", cfg.Compaction.Schedule, err)
		}
		sched.Start()
		defer sched.Stop()
		fmt.Fprintf(os.Stderr, "  compaction: %s\n", cfg.Compaction.Schedule)
	}

	srv := server.New(eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "gauged serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  escrow: %s\n", cfg.Escrow.Provider)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
