package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/debug"
	"github.com/dyike/FinCortex/internal/graph"
	"github.com/dyike/FinCortex/internal/logger"
	"github.com/dyike/FinCortex/internal/server"
)

const shutdownTimeout = 15 * time.Second

// newServeCmd creates the serve command
func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis pipeline over HTTP",
		Long: `Start the HTTP API. POST /analyze runs one analysis; GET /healthz and
GET /metrics report liveness and Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http_addr)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	cfg := a.cfg
	log := a.log
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	if err := debug.NewEinoDebugger(&cfg, log).Initialize(ctx); err != nil {
		return err
	}

	var (
		pipelineOpts []graph.PipelineOption
		serverOpts   = []server.Option{server.WithDefaultK(cfg.DefaultTopK)}
	)
	history, err := openHistory(&cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		pipelineOpts = append(pipelineOpts, graph.WithRecorder(history))
		serverOpts = append(serverOpts, server.WithHistory(history))
		log.Info("analysis history enabled", zap.String("path", cfg.HistoryDBPath))
	}

	pipeline, closer, err := graph.Build(ctx, &cfg, log, pipelineOpts...)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := a.manager.Watch(ctx, onConfigChange(a.level, log)); err != nil {
		log.Warn("config watch disabled", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(pipeline, log, serverOpts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// onConfigChange applies the log level live. Other settings are read when
// the pipeline is built and need a restart.
func onConfigChange(level zap.AtomicLevel, log *zap.Logger) func(config.Config) {
	return func(cfg config.Config) {
		lvl, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Warn("ignoring invalid log level", zap.String("level", cfg.LogLevel), zap.Error(err))
			return
		}
		if lvl != level.Level() {
			level.SetLevel(lvl)
			log.Info("log level changed", zap.String("level", lvl.String()))
		}
		log.Info("configuration reloaded; restart to apply pipeline settings")
	}
}
