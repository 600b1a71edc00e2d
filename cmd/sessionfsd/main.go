package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sessionfs/sessionfs/internal/control"
	"github.com/sessionfs/sessionfs/internal/core"
	"github.com/sessionfs/sessionfs/internal/logger"
	"github.com/sessionfs/sessionfs/internal/observability"
	"github.com/sessionfs/sessionfs/internal/procprobe"
	"github.com/sessionfs/sessionfs/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/sessionfs/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("sessionfsd - session semantics manager")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Session root: %s", cfg.SessionRoot)
	logger.Info("Host filesystem: %s", cfg.HostFS.Type)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs, err := config.CreateHostFS(ctx, &cfg.HostFS)
	if err != nil {
		log.Fatalf("Failed to create host filesystem: %v", err)
	}

	probe := newProbe()

	coreState, err := core.New(fs, probe, cfg.SessionRoot)
	if err != nil {
		log.Fatalf("Failed to initialize core: %v", err)
	}
	dispatcher := control.NewDispatcher(coreState)
	_ = dispatcher // exercised by internal/control; wired for a future transport

	sweepDone := runSweepLoop(ctx, coreState, cfg.Sweep.Interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("sessionfsd is running. Press Ctrl+C to stop.")
	<-sigChan
	logger.Info("shutdown signal received, initiating graceful shutdown...")
	cancel()
	<-sweepDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := gracefulShutdown(shutdownCtx, coreState); err != nil {
		logger.Error("shutdown did not complete cleanly: %v", err)
		snap := observability.Snapshot(coreState.Registry(), probe)
		logger.Warn("active incarnations at shutdown timeout: %d", snap.ActiveCount)
		os.Exit(1)
	}
	logger.Info("sessionfsd stopped gracefully")
}

// newProbe returns the production process-liveness probe for this
// platform.
func newProbe() procprobe.Probe {
	return procprobe.NewOS()
}

// runSweepLoop runs the dead-owner reaper on cfg.Sweep.Interval until ctx
// is cancelled, closing the returned channel once the loop has exited.
func runSweepLoop(ctx context.Context, coreState *core.CoreState, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				active := coreState.Sweep()
				logger.Debug("sweep complete: %d incarnations active", active)
			}
		}
	}()
	return done
}

// gracefulShutdown retries the two-phase shutdown coordinator until it
// succeeds or ctx is exceeded, giving in-flight operations and the
// sweep loop time to drain.
func gracefulShutdown(ctx context.Context, coreState *core.CoreState) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := coreState.Shutdown(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
