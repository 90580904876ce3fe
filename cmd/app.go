package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/backup"
	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/database/file"
	"github.com/kozaktomas/face-recognizer/internal/database/postgres"
	"github.com/kozaktomas/face-recognizer/internal/extractor"
	"github.com/kozaktomas/face-recognizer/internal/identity"
	"github.com/kozaktomas/face-recognizer/internal/logging"
	"github.com/kozaktomas/face-recognizer/internal/matcher"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds everything a command needs, built from the environment and the
// global flags.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *identity.Store
	extractor *extractor.Client
	backup    *backup.Uploader // nil when BACKUP_ENDPOINT is unset
	service   *recognition.Service
	pool      *postgres.Pool // nil for the file backend
}

// loadConfig reads the environment and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path := mustGetString(cmd, "store"); path != "" {
		cfg.Store.Backend = config.BackendFile
		cfg.Store.Path = path
	}
	if metric := mustGetString(cmd, "metric"); metric != "" {
		cfg.Match.Metric = metric
	}
	if cmd.Flags().Changed("threshold") {
		threshold := mustGetFloat64(cmd, "threshold")
		cfg.Match.Threshold = &threshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp opens the configured store and wires the recognition service.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Log, logging.Options{Output: os.Stderr})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := []identity.Option{identity.WithLogger(logger)}
	if cfg.Store.Dimension > 0 {
		opts = append(opts, identity.WithDimension(cfg.Store.Dimension))
	}
	if cfg.Store.DiscardCorrupt {
		opts = append(opts, identity.WithCorruptFallback())
	}
	a.store, err = identity.Open(ctx, backend, opts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening identity store %s: %w", backend.Location(), err)
	}

	a.extractor = extractor.NewClient(cfg.Extractor, logger)

	threshold := cfg.Threshold()
	svcOpts := recognition.Options{
		Metric:      matcher.Metric(cfg.Match.Metric),
		Threshold:   &threshold,
		Concurrency: cfg.Extractor.Concurrency,
		Bands:       cfg.Defaults.Compare,
		Logger:      logger,
	}
	if cfg.Backup.Enabled() {
		a.backup, err = backup.New(cfg.Backup, a.store, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		svcOpts.Backup = a.backup
	}

	a.service, err = recognition.NewService(a.extractor, a.store, svcOpts)
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("identity store ready",
		zap.String("location", a.store.Location()),
		zap.Int("dimension", a.store.Dimension()),
		zap.String("metric", cfg.Match.Metric),
		zap.Float64("threshold", threshold),
	)
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (database.SnapshotStore, error) {
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		pool, store, err := postgres.Open(ctx, &a.cfg.Database, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.pool = pool
		return store, nil
	default:
		return file.New(a.cfg.Store.Path), nil
	}
}

func (a *app) close() {
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.logger.Warn("closing database pool", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// readImage reads an image file from disk.
func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
