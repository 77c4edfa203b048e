package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"

	"github.com/finey-app/finey/internal/audit"
	"github.com/finey-app/finey/internal/backend"
	"github.com/finey-app/finey/internal/controlplane"
	"github.com/finey-app/finey/internal/lifecycle"
	"github.com/finey-app/finey/internal/reconcile"
	"github.com/finey-app/finey/internal/reminder"
	"github.com/finey-app/finey/internal/remote"
	"github.com/finey-app/finey/internal/store"
	"github.com/finey-app/finey/internal/telemetry"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Finey daemon",
	Long:  `Starts the Finey daemon which hosts the task lifecycle behind a local HTTP API and fires reminders.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (default from config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if listenAddr == "" {
		listenAddr = cfg.Daemon.Listen
	}
	if dbPath == "" {
		dbPath = cfg.Daemon.DBPath
	}

	logger, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		LogLevel:     cfg.Log.Level,
		LogFormat:    cfg.Log.Format,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", err))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter(cfg.Telemetry.ServiceName))
	if err != nil {
		return err
	}

	logger.Info("starting finey daemon", slog.String("db", dbPath))

	// Initialize store
	s, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("closing database connection")
		if err := s.Close(); err != nil {
			logger.Error("database close error", slog.Any("error", err))
		}
	}()

	records, proofs, closeRemote, err := openRemote(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRemote()

	// Reminders
	scheduler := reminder.NewScheduler(s)
	dispatcher := reminder.NewDispatcher(s, reminder.LogNotifier{Logger: logger}, &reminder.Config{
		PollInterval: cfg.Reminders.PollInterval,
		Retention:    cfg.Reminders.Retention,
	}, logger)

	// Lifecycle
	engine := reconcile.New(s, records, scheduler, reconcile.Options{
		Logger:        logger,
		Metrics:       metrics,
		ReminderTitle: cfg.Policy.ReminderTitle,
	})
	opts := lifecycle.Options{
		Policy: lifecycle.Policy{
			DepositFloor:  cfg.Policy.DepositFloor,
			DeletionGrace: cfg.Policy.DeletionGrace,
		},
		Audit:   audit.NewRecorder(s),
		Logger:  logger,
		Metrics: metrics,
	}
	if proofs != nil {
		opts.Proofs = proofs
	}
	payments := backend.NewClient(cfg.API.BaseURL, cfg.API.AppVersion, backend.WithTimeout(cfg.API.Timeout))
	ctrl := lifecycle.New(engine, payments, opts)

	server := controlplane.NewServer(ctrl, s, listenAddr, logger)

	dispatcher.Start()
	defer dispatcher.Stop()

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.Any("error", err))
	}
	return nil
}

// openRemote connects the record store and, when a bucket is configured, the
// proof store. Without a project the records live in memory.
func openRemote(ctx context.Context, logger *slog.Logger) (reconcile.RecordStore, *remote.ProofStore, func(), error) {
	fb := cfg.Firebase
	if fb.ProjectID == "" {
		logger.Warn("no firebase project configured, keeping records in memory")
		return remote.NewMemory(), nil, func() {}, nil
	}

	var opts []option.ClientOption
	if fb.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(fb.CredentialsFile))
	}

	fs, err := remote.NewFirestore(ctx, fb.ProjectID, fb.Collection, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	if fb.Bucket == "" {
		return fs, nil, func() { fs.Close() }, nil
	}

	proofs, err := remote.NewProofStore(ctx, fb.Bucket, opts...)
	if err != nil {
		fs.Close()
		return nil, nil, nil, err
	}
	return fs, proofs, func() {
		proofs.Close()
		fs.Close()
	}, nil
}
