package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/potooio/curator/internal/api"
	"github.com/potooio/curator/internal/catalog"
	"github.com/potooio/curator/internal/config"
	"github.com/potooio/curator/internal/correlator"
	"github.com/potooio/curator/internal/curation"
	"github.com/potooio/curator/internal/indexer"
	"github.com/potooio/curator/internal/installer"
	"github.com/potooio/curator/internal/module"
	"github.com/potooio/curator/internal/notifier"
	"github.com/potooio/curator/internal/procmon"
	"github.com/potooio/curator/internal/registry"
	"github.com/potooio/curator/internal/resolver"
)

const shutdownTimeout = 10 * time.Second

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting curatord",
		zap.String("version", "dev"),
		zap.Strings("curation", cfg.Curation.Paths),
		zap.String("catalog", cfg.Catalog.URL),
		zap.String("install_dir", cfg.Install.Dir),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.OpenFile(cfg.Registry.Path, logger)
	if err != nil {
		return err
	}

	cat, err := catalog.NewHTTPClient(logger, catalog.HTTPClientConfig{
		BaseURL:        cfg.Catalog.URL,
		TimeoutSeconds: cfg.Catalog.Timeout,
		RateLimit:      cfg.Catalog.RateLimit,
		AuthToken:      cfg.Catalog.AuthToken,
	})
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}

	inst, err := installer.NewHTTPInstaller(installer.HTTPInstallerConfig{
		Dir:            cfg.Install.Dir,
		TimeoutSeconds: cfg.Install.Timeout,
		AuthToken:      cfg.Catalog.AuthToken,
	}, reg, logger)
	if err != nil {
		return fmt.Errorf("create installer: %w", err)
	}

	notify, err := newNotifier(cfg.Webhook, logger)
	if err != nil {
		return err
	}
	// Reporters outlive the signal context so outcomes of installs cancelled
	// by mod.Disable are still delivered. Deferred before mod.Disable, so it
	// runs after it.
	notifyCtx, notifyCancel := context.WithCancel(context.WithoutCancel(ctx))
	notify.Start(notifyCtx)
	defer func() {
		notifyCancel()
		notify.Close()
	}()

	dispatcher := installer.NewDispatcher(inst, logger, installer.DispatcherOptions{Notifier: notify})

	scanner, err := procmon.NewProcfsScanner(cfg.Monitor.ProcRoot)
	if err != nil {
		return fmt.Errorf("open process table: %w", err)
	}
	monitor := procmon.NewMonitor(scanner, cfg.Monitor.PollInterval, logger)

	builder := indexer.NewBuilder(resolver.New(cat, logger), reg, logger)
	builder.SetWindowTitlesReported(procmon.ReportsWindowTitles(scanner))

	mod := module.New(module.Options{
		Source:     curation.NewFileSource(cfg.Curation.Paths...),
		Builder:    builder,
		Dispatcher: dispatcher,
		Events:     monitor,
		Correlator: correlator.CorrelatorOptions{EventRateLimit: cfg.Monitor.EventRateLimit},
	}, logger)

	if err := mod.Enable(ctx); err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	defer mod.Disable()

	go func() {
		if err := monitor.Start(ctx); err != nil {
			logger.Error("Process monitor exited", zap.Error(err))
		}
	}()

	if cfg.Curation.Watch {
		watcher, err := curation.NewWatcher(logger, cfg.Curation.Paths...)
		if err != nil {
			return fmt.Errorf("create curation watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start curation watcher: %w", err)
		}
		defer watcher.Stop()
		go reloadOnChange(ctx, watcher, mod, logger)
	}

	mux := http.NewServeMux()
	api.RegisterHandlers(mux, mod, logger)
	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Serving status API", zap.String("addr", cfg.API.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("status API: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Status API shutdown", zap.Error(err))
	}
	return runErr
}

// newNotifier builds the outcome notifier; the webhook reporter is only added
// when a URL is configured.
func newNotifier(cfg config.WebhookConfig, logger *zap.Logger) (*notifier.Dispatcher, error) {
	opts := notifier.DefaultDispatcherOptions()
	if cfg.URL != "" {
		wr, err := notifier.NewWebhookReporter(logger, notifier.WebhookReporterConfig{
			URL:            cfg.URL,
			TimeoutSeconds: cfg.Timeout,
			ReportOn:       cfg.ReportOn,
			AuthToken:      cfg.AuthToken,
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook reporter: %w", err)
		}
		logger.Info("Webhook reporter configured", zap.String("url", notifier.RedactURL(cfg.URL)))
		opts.Reporters = append(opts.Reporters, wr)
	}
	return notifier.NewDispatcher(logger, opts), nil
}

func reloadOnChange(ctx context.Context, w *curation.Watcher, mod *module.Module, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.Changes:
			if !ok {
				return
			}
			logger.Info("Curation changed", zap.String("path", path))
			if err := mod.Reload(ctx); err != nil {
				logger.Error("Reload failed; detections are disabled until the next change", zap.Error(err))
			}
		}
	}
}
