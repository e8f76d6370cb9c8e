package app

import (
	"context"
	"fmt"
	"os"

	"github.com/semmidev/arca/internal/adapter/archiver"
	"github.com/semmidev/arca/internal/adapter/crypto"
	"github.com/semmidev/arca/internal/adapter/database"
	"github.com/semmidev/arca/internal/adapter/destination"
	"github.com/semmidev/arca/internal/config"
	"github.com/semmidev/arca/internal/domain"
	"github.com/semmidev/arca/internal/infrastructure/logger"
	"github.com/semmidev/arca/internal/infrastructure/scheduler"
	"github.com/semmidev/arca/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	archives  []domain.Archive
	builder   *archiver.Builder
	scheduler *scheduler.Scheduler
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)
	log.Infof("Found %d archive(s) configured", len(cfg.Archives))

	if err := os.MkdirAll(cfg.WorkingDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory %q: %w", cfg.WorkingDirectory, err)
	}

	archives, err := buildArchives(cfg, log)
	if err != nil {
		return nil, err
	}

	return &App{
		config:    cfg,
		logger:    log,
		archives:  archives,
		builder:   archiver.NewBuilder(cfg.WorkingDirectory, log),
		scheduler: scheduler.New(),
	}, nil
}

// buildArchives resolves the validated configuration into the immutable
// domain graph the pipeline consumes: every id reference becomes a
// constructed adapter.
func buildArchives(cfg *config.Config, log *logger.Logger) ([]domain.Archive, error) {
	encryptions := make(map[string]*config.EncryptionConfig, len(cfg.Encryptions))
	for i := range cfg.Encryptions {
		encryptions[cfg.Encryptions[i].ID] = &cfg.Encryptions[i]
	}
	destinations := make(map[string]*config.DestinationConfig, len(cfg.Destinations))
	for i := range cfg.Destinations {
		destinations[cfg.Destinations[i].ID] = &cfg.Destinations[i]
	}
	databases := make(map[string]*config.DatabaseConfig, len(cfg.Databases))
	for i := range cfg.Databases {
		databases[cfg.Databases[i].ID] = &cfg.Databases[i]
	}

	var archives []domain.Archive
	for i := range cfg.Archives {
		archiveCfg := &cfg.Archives[i]

		archive := domain.Archive{
			Name:        archiveCfg.Name,
			Compression: parseCompression(archiveCfg.Compression),
		}

		if archiveCfg.EncryptionID != "" {
			encCfg := encryptions[archiveCfg.EncryptionID]
			archive.Encryption = crypto.NewOpenSSL(encCfg.Cipher, encCfg.Passphrase, log)
		}

		dest, err := buildDestination(destinations[archiveCfg.Destination], cfg.WorkingDirectory, log)
		if err != nil {
			return nil, err
		}
		archive.Destination = dest

		for _, dirCfg := range archiveCfg.Directories {
			archive.Directories = append(archive.Directories, domain.Directory{
				Path:  dirCfg.Path,
				User:  dirCfg.User,
				Group: dirCfg.Group,
			})
		}

		for _, id := range archiveCfg.DatabaseIDs {
			archive.Databases = append(archive.Databases, buildDatabase(databases[id]))
		}

		archives = append(archives, archive)
	}

	return archives, nil
}

func parseCompression(kind string) domain.Compression {
	switch kind {
	case "tar":
		return domain.CompressionTar
	case "tar.bz2":
		return domain.CompressionTarBZ2
	default:
		return domain.CompressionNone
	}
}

func buildDestination(cfg *config.DestinationConfig, workDir string, log *logger.Logger) (domain.Destination, error) {
	switch cfg.Type {
	case "local":
		return destination.NewLocal(cfg.Path, log), nil
	case "s3":
		dest, err := destination.NewS3(cfg, workDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 destination %q: %w", cfg.ID, err)
		}
		return dest, nil
	case "sftp":
		return destination.NewSFTP(cfg, workDir, log), nil
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.Type)
	}
}

func buildDatabase(cfg *config.DatabaseConfig) domain.Database {
	switch cfg.Type {
	case "postgresql":
		return database.NewPostgreSQL(cfg)
	case "mongodb":
		return database.NewMongoDB(cfg)
	default:
		return database.NewMySQL(cfg)
	}
}

// RunBackup executes the backup pipeline, either once or on the
// configured cron schedule.
func (a *App) RunBackup(ctx context.Context) error {
	backupUC := usecase.NewBackup(a.archives, a.builder, a.logger)

	if a.config.App.Schedule == "" {
		return backupUC.Execute(ctx)
	}

	a.logger.Infof("Scheduling backup: %s", a.config.App.Schedule)
	a.scheduler.WithContext(ctx)
	if err := a.scheduler.AddJob(a.config.App.Schedule, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup ===")
		if err := backupUC.Execute(ctx); err != nil {
			a.logger.Errorf("Backup failed: %v", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started successfully")

	<-ctx.Done()
	return nil
}

// RunRestore executes the restore pipeline once.
func (a *App) RunRestore(ctx context.Context) error {
	restoreUC := usecase.NewRestore(a.archives, a.builder, a.config.WorkingDirectory, a.logger)
	return restoreUC.Execute(ctx)
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.scheduler.Stop()
	a.logger.Close()
}
