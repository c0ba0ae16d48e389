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

	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	app "github.com/mohammadpnp/hana-migration/internal/application/migration"
	"github.com/mohammadpnp/hana-migration/internal/bootstrap"
	"github.com/mohammadpnp/hana-migration/internal/config"
	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/archive"
	infrafile "github.com/mohammadpnp/hana-migration/internal/infrastructure/file"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/notifier"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/objectstore"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/statusstore"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/translator"
	"github.com/mohammadpnp/hana-migration/internal/logging"
	"github.com/mohammadpnp/hana-migration/internal/metrics"
)

var logger = loggo.GetLogger("hanamigration")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hana-migration: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir, AppName: cfg.AppName})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	store, err := statusstore.Open(ctx, cfg.StatusStoreURL, statusstore.Options{TTL: cfg.StatusTTL})
	if err != nil {
		return fmt.Errorf("open status store: %w", err)
	}
	defer store.Close()

	objects, err := objectstore.New(ctx, objectstore.Config{
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
		Attempts:        cfg.S3.RetryAttempts,
	})
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}

	translatorClient := translator.New(translator.Config{
		APIKey:            cfg.Translator.APIKey,
		BaseURL:           cfg.Translator.BaseURL,
		Model:             cfg.Translator.Model,
		RetryCount:        2,
		RequestsPerSecond: cfg.Translator.RequestsPerSecond,
	})

	webApp := notifier.New(notifier.Config{
		AuthURL:    cfg.WebApp.AuthURL,
		WebhookURL: cfg.WebApp.WebhookURL,
		Username:   cfg.WebApp.Username,
		Password:   cfg.WebApp.Password,
		RememberMe: cfg.WebApp.RememberMe,
		RetryCount: 2,
	})

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collector,
	)

	workspace := infrafile.NewWorkspace(cfg.WorkDir)
	orchestrator := app.NewOrchestrator(app.OrchestratorDeps{
		Store:     store,
		Objects:   objects,
		Notifier:  webApp,
		Processor: app.NewArchiveProcessor(translatorClient, cfg.Translator.Concurrency, collector),
		Workspace: workspace,
		Codec:     archive.Codec{},
		Layout:    domain.NewOutputLayout(cfg.S3.Bucket, cfg.S3.Prefix),
		Recorder:  collector,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	worker := app.NewMigrationWorker(orchestrator, app.MigrationWorkerConfig{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	})
	worker.Start(workerCtx)

	var purger infrafile.ExpiredRecordPurger
	if p, ok := store.(infrafile.ExpiredRecordPurger); ok {
		purger = p
	}
	janitor, err := infrafile.NewJanitor(workspace, cfg.WorkspaceSweepSchedule, cfg.WorkspaceMaxAge, purger)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	server := bootstrap.NewHTTPServer(bootstrap.ServerDeps{
		StartMigration:     app.NewStartMigration(store, worker, cfg.JobLockTTL),
		GetMigrationStatus: app.NewGetMigrationStatus(store),
		Ping:               store.Ping,
		Gatherer:           registry,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on :%s", cfg.Port)
		if err := server.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Infof("received %s, shutting down", sig)
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := worker.Shutdown(drainCtx); err != nil {
		logger.Warningf("in-flight migrations did not finish in time, cancelling them")
		stopWorkers()

		finalCtx, cancelFinal := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFinal()
		if err := worker.Shutdown(finalCtx); err != nil {
			logger.Errorf("migration workers did not stop: %v", err)
		}
	}

	return nil
}
