package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/foresight/internal/agent"
	"github.com/dusk-indust/foresight/internal/config"
	"github.com/dusk-indust/foresight/internal/events"
	"github.com/dusk-indust/foresight/internal/export"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/invoke"
	"github.com/dusk-indust/foresight/internal/logging"
	"github.com/dusk-indust/foresight/internal/mcptools"
	"github.com/dusk-indust/foresight/internal/pipeline"
	"github.com/dusk-indust/foresight/internal/prompt"
	"github.com/dusk-indust/foresight/internal/reason"
	"github.com/dusk-indust/foresight/internal/server"
)

// app holds the wired engine for one process invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  forecast.Store
	orch   *pipeline.Orchestrator

	publisher *events.Publisher
	closers   []func()
}

// newApp loads configuration and wires the full pipeline stack.
func newApp(flags cliFlags) (*app, error) {
	cfg, err := config.Load(flags.ConfigDir)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if cfg.StorePath != "" {
		sqlStore, err := forecast.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = sqlStore.Close() })
		a.store = sqlStore
	} else {
		a.store = forecast.NewMemoryStore()
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	renderer, err := prompt.NewRenderer()
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.GenAIAPIKey == "" {
		a.Close()
		return nil, fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) is not set")
	}
	client, err := reason.NewGenAIClient(context.Background(), cfg.GenAIAPIKey, "")
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("reasoning client: %w", err)
	}

	invoker := invoke.NewInvoker(registry, renderer, client, logger)
	router := pipeline.NewRouter(registry)
	executor := pipeline.NewExecutor(a.store, invoker, router, logger)
	reporter := pipeline.NewReporter()
	a.orch = pipeline.NewOrchestrator(a.store, executor, reporter, pipeline.BuiltinPresets(), logger)

	if cfg.NATSURL != "" {
		publisher, err := events.Connect(cfg.NATSURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		reporter.AddSink(publisher.Sink())
		a.publisher = publisher
		a.closers = append(a.closers, func() { _ = publisher.Close() })
	}

	return a, nil
}

func buildRegistry(cfg *config.Config, logger *zap.Logger) (*agent.Registry, error) {
	if cfg.CatalogPath != "" {
		reg := agent.NewRegistry(logger)
		if err := agent.LoadCatalogFile(cfg.CatalogPath, reg); err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
		}
		return reg, nil
	}
	return agent.DefaultRegistry(logger)
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// runOnce submits a single forecast, waits for it to finish, and prints the
// report.
func (a *app) runOnce(flags cliFlags) error {
	ctx := context.Background()

	preset := flags.Preset
	if preset == "" {
		preset = a.cfg.DefaultPreset
	}

	forecastID, _, err := a.orch.Start(ctx, flags.GameID, flags.HomeID, flags.AwayID, preset, 0)
	if err != nil {
		return err
	}

	a.orch.Wait()

	fc, err := a.store.GetContext(forecastID)
	if err != nil {
		return err
	}
	if fc.FinalProbability == nil {
		return fmt.Errorf("forecast %s did not complete", forecastID)
	}

	report := export.BuildReport(fc)
	if flags.Markdown {
		fmt.Print(report.Markdown())
		return nil
	}
	data, err := report.JSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// serveHTTP runs the REST API until interrupted.
func (a *app) serveHTTP() error {
	srv := server.New(a.store, a.orch, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx, a.cfg.ListenAddr); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// serveMCP runs the stdio MCP server until stdin closes.
func (a *app) serveMCP() error {
	srv := mcptools.NewForecastMCPServer(a.orch, a.store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mcptools.RunStdio(ctx, srv)
}
