package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"grantmatch/internal/adapter/orchestrator"
	"grantmatch/internal/infra/audit"
	"grantmatch/internal/infra/config"
	"grantmatch/internal/infra/logger"
	"grantmatch/internal/infra/metrics"
	"grantmatch/internal/infra/tracer"
	"grantmatch/internal/usecase/stream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "grantmatch: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by subcommands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	client     *orchestrator.Client
	controller *stream.Controller
	out        io.Writer

	closers []func(context.Context) error
}

func (a *app) close() {
	if len(a.closers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
}

func newRootCmd(a *app) *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "grantmatch",
		Short:         "Search for research grants and assemble teams through the orchestration service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.init(cmd.Context(), configPath, logLevel); err != nil {
				return err
			}
			a.out = cmd.OutOrStdout()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "grantmatch.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")

	root.AddCommand(
		newSearchCmd(a),
		newGroupCmd(a),
		newCollaboratorsCmd(a),
		newTeamCmd(a),
		newEmailCmd(a),
		newFacultyCmd(a),
		newDoctorCmd(),
	)
	return root
}

func (a *app) init(ctx context.Context, configPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	a.cfg = cfg

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	a.logger = log
	a.closers = append(a.closers, func(context.Context) error { return closeLog() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	a.closers = append(a.closers, shutdownTracer)

	m := metrics.New(cfg.Metrics)
	if m != nil && cfg.Metrics.Addr != "" {
		mctx, cancel := context.WithCancel(ctx)
		m.Serve(mctx, cfg.Metrics.Addr, log)
		a.closers = append(a.closers, func(context.Context) error { cancel(); return nil })
	}

	al, err := audit.Open(cfg.Audit)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return al.Close() })

	a.client = orchestrator.NewClient(cfg.Orchestrator, cfg.Email, log, orchestrator.WithAuditLogger(al))
	a.controller = stream.NewController(a.client, log, stream.WithRecorder(m))
	return nil
}

var _ stream.Recorder = (*metrics.Stream)(nil)
