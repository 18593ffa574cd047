// Package daemon wires the tool registry, confirmation gate, dispatcher,
// store, and gateway into a running service.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arpith/higate/internal/config"
	"github.com/arpith/higate/internal/logger"
	"github.com/arpith/higate/internal/observability"
	"github.com/arpith/higate/internal/tracing"
	"github.com/arpith/higate/pkg/catalog"
	"github.com/arpith/higate/pkg/dispatch"
	"github.com/arpith/higate/pkg/gate"
	"github.com/arpith/higate/pkg/gateway"
	"github.com/arpith/higate/pkg/higress"
	"github.com/arpith/higate/pkg/registry"
	"github.com/arpith/higate/pkg/store"
)

// Daemon is the composed higate service.
type Daemon struct {
	config *config.Config
	loader *config.Loader
	logger *logger.Logger
	zlog   zerolog.Logger

	client     *higress.Client
	registry   *registry.Registry
	store      *store.Store
	archive    *store.Archive
	janitor    *store.Janitor
	gate       *gate.Gate
	dispatcher *dispatch.Dispatcher

	gatewayServer *gateway.Server
	metricsServer *http.Server
	watcher       *config.Watcher

	stopOnce sync.Once
}

// New builds the daemon from configuration. Nothing is started yet.
func New(cfg *config.Config, loader *config.Loader) (*Daemon, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zlog := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("higate", cfg.Tracing.SampleRatio); err != nil {
		zlog.Warn().Err(err).Msg("OpenTelemetry init failed, tracing disabled")
	}
	observability.EnsureRegistered()
	if cfg.DataDir != "" {
		if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
			zlog.Warn().Err(err).Msg("Audit logger init failed")
		}
	}

	client, err := higress.NewClient(higress.Config{
		BaseURL:       cfg.Higress.BaseURL,
		Username:      cfg.Higress.Username,
		Password:      cfg.Higress.Password,
		SessionCookie: cfg.Higress.SessionCookie,
		Timeout:       cfg.HigressTimeout(),
		Logger:        zlog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create console client: %w", err)
	}

	reg, err := catalog.Build(client)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool catalog: %w", err)
	}

	st := store.New(store.Options{
		Retention:  cfg.Retention(),
		MaxEntries: cfg.Store.MaxEntries,
	})

	var archive *store.Archive
	if cfg.Store.ArchivePath != "" {
		archive, err = store.OpenArchive(cfg.Store.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open invocation archive: %w", err)
		}
		st.SetArchive(archive)
	}

	janitor, err := store.NewJanitor(st, cfg.Store.SweepSchedule)
	if err != nil {
		return nil, err
	}

	g := gate.New(st, cfg.ConfirmDeadline())
	if cfg.Confirm.CLIPrompt {
		g.AddForwarder(gate.NewCLIPrompt(g, os.Stdin, os.Stdout))
	}

	dispatcher := dispatch.New(reg, g, st, cfg.HigressTimeout())

	d := &Daemon{
		config:     cfg,
		loader:     loader,
		logger:     lg,
		zlog:       zlog,
		client:     client,
		registry:   reg,
		store:      st,
		archive:    archive,
		janitor:    janitor,
		gate:       g,
		dispatcher: dispatcher,
	}

	if cfg.Gateway.Enabled {
		server, err := gateway.NewServer(gateway.Config{
			Port:         cfg.Gateway.Port,
			SharedSecret: cfg.Gateway.SharedSecret,
			Registry:     reg,
			Dispatcher:   dispatcher,
			Gate:         g,
			Store:        st,
			Logger:       zlog,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gateway server: %w", err)
		}
		g.AddForwarder(server)
		d.gatewayServer = server
	}

	if loader != nil {
		d.watcher = config.NewWatcher(loader, d.onConfigReload)
	}

	return d, nil
}

// Start brings up downstream auth, the janitor, the gateway, and the
// metrics endpoint.
func (d *Daemon) Start(ctx context.Context) error {
	d.zlog.Info().
		Str("console", d.config.Higress.BaseURL).
		Int("tools", d.registry.Count()).
		Msg("Starting higate daemon")

	if !d.client.HasSession() {
		if err := d.client.Login(ctx); err != nil {
			return fmt.Errorf("console login failed: %w", err)
		}
	}

	d.janitor.Start()

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Start(); err != nil {
			return fmt.Errorf("failed to start gateway: %w", err)
		}
	}

	if d.config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		d.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", d.config.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.zlog.Error().Err(err).Msg("Metrics server error")
			}
		}()
		d.zlog.Info().Int("port", d.config.Metrics.Port).Msg("Metrics endpoint started")
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.zlog.Warn().Err(err).Msg("Config watcher failed to start, hot reload disabled")
		}
	}

	d.zlog.Info().Msg("Higate daemon started")
	return nil
}

// Run starts the daemon and blocks until a shutdown signal or context
// cancellation.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.zlog.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-ctx.Done():
		d.zlog.Info().Msg("Context cancelled, shutting down")
	}

	return d.Stop()
}

// Stop shuts the daemon down in reverse start order. Safe to call more
// than once.
func (d *Daemon) Stop() error {
	var firstErr error

	d.stopOnce.Do(func() {
		d.zlog.Info().Msg("Stopping higate daemon")

		if d.watcher != nil {
			d.watcher.Stop()
		}

		if d.gatewayServer != nil {
			if err := d.gatewayServer.Stop(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		if d.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.metricsServer.Shutdown(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		d.janitor.Stop()

		if d.archive != nil {
			if err := d.archive.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			d.zlog.Warn().Err(err).Msg("OpenTelemetry shutdown failed")
		}
		if err := observability.GetAuditLogger().Close(); err != nil {
			d.zlog.Warn().Err(err).Msg("Audit logger close failed")
		}

		d.zlog.Info().Msg("Higate daemon stopped")

		if err := d.logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	})

	return firstErr
}

// onConfigReload applies the settings that are safe to change at runtime.
func (d *Daemon) onConfigReload(cfg *config.Config) {
	d.zlog.Info().Msg("Applying reloaded configuration")

	if cfg.Logging.Level != d.config.Logging.Level {
		d.logger.SetLevel(cfg.Logging.Level)
		d.config.Logging.Level = cfg.Logging.Level
	}

	if cfg.Confirm.DeadlineSeconds != d.config.Confirm.DeadlineSeconds {
		d.gate.SetDeadline(cfg.ConfirmDeadline())
		d.config.Confirm.DeadlineSeconds = cfg.Confirm.DeadlineSeconds
		d.zlog.Info().
			Int("deadline_seconds", cfg.Confirm.DeadlineSeconds).
			Msg("Confirmation deadline updated")
	}

	if d.gatewayServer != nil &&
		cfg.Gateway.SharedSecret != "" &&
		cfg.Gateway.SharedSecret != d.config.Gateway.SharedSecret {
		d.gatewayServer.RotateSecret(cfg.Gateway.SharedSecret)
		d.config.Gateway.SharedSecret = cfg.Gateway.SharedSecret
	}
}

// Registry exposes the sealed tool catalog.
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// Gate exposes the confirmation gate.
func (d *Daemon) Gate() *gate.Gate {
	return d.gate
}

// Dispatcher exposes the invocation dispatcher.
func (d *Daemon) Dispatcher() *dispatch.Dispatcher {
	return d.dispatcher
}

// Store exposes the invocation/ticket store.
func (d *Daemon) Store() *store.Store {
	return d.store
}
