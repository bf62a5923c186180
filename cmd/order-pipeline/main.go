// Command order-pipeline simulates order lifecycles on per-customer logs and materializes them into
// order history documents.
//
// Usage:
//
//	order-pipeline -backend redis -host localhost -port 6379 -events 200 -shards 3 -workers 2
//
// Every flag has an ORDERS_* environment variable counterpart, see package config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/config"
	"github.com/AntonStoeckl/order-lifecycle-streams/pipeline"
)

const (
	commandName     = "order-pipeline"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(flag.NewFlagSet(commandName, flag.ContinueOnError), args, nil)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}

	if err != nil {
		return err
	}

	logger := newLogger(cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := newObservability(ctx, cfg)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg, logger, obs.metrics())
	if err != nil {
		return err
	}
	defer backend.close()

	p, err := pipeline.NewPipeline(backend.logs, backend.counters, backend.documents, cfg.PipelineSettings(), obs.pipelineOptions(logger)...)
	if err != nil {
		return err
	}

	logger.Info(
		"starting order pipeline",
		"backend", cfg.Backend,
		"shards", cfg.Shards,
		"entities", cfg.Entities,
		"producers", cfg.Producers,
		"events_per_producer", cfg.Events,
		"duration", cfg.Duration.String(),
	)

	report, runErr := p.Run(ctx)

	logger.Info(
		"order pipeline finished",
		"emitted", report.Emitted,
		"failed", report.Failed,
		"elapsed", report.Elapsed.Round(time.Millisecond).String(),
	)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	obs.shutdown(shutdownCtx, logger)

	return runErr
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
