package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ellavondegurechaff/vmq/backend"
	"github.com/ellavondegurechaff/vmq/backend/handlers"
	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/internal/gateways/database/repositories"
	"github.com/ellavondegurechaff/vmq/pool"
	"github.com/ellavondegurechaff/vmq/pool/archive"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/database"
	"github.com/ellavondegurechaff/vmq/pool/logger"
	"github.com/ellavondegurechaff/vmq/pool/utils"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, found, err := pool.LoadConfigOrDefault(*path)
	if err != nil {
		logger.Setup("VMQ", slog.LevelInfo)
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	logger.Setup("VMQ", cfg.Log.Level)

	slog.Info("Starting VMQ account pool",
		slog.String("version", version),
		slog.String("commit", commit))
	if found {
		slog.Info("Configuration loaded successfully", slog.String("path", *path))
	} else {
		slog.Warn("Config file not found, using defaults", slog.String("path", *path))
	}

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), config.StartupTimeout)
	db, err := database.New(ctx, cfg.Database())
	if err != nil {
		cancel()
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		cancel()
		db.Close()
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	cancel()
	slog.Info("Database schema initialized successfully")

	repo := repositories.NewAccountRepository(db.BunDB(), cfg.Repository())
	service := accounts.NewService(repo, accounts.Options{})

	app := backend.NewServer(cfg.Web, &handlers.WebApp{
		Accounts: service,
		DB:       db,
		Version:  version,
		Commit:   commit,
	})

	bpm := utils.NewBackgroundProcessManager(context.Background())

	addr := net.JoinHostPort(cfg.Web.Host, strconv.Itoa(cfg.Web.Port))
	bpm.StartProcess("http", func(ctx context.Context) error {
		logger.LogSystem("HTTP server listening", slog.String("addr", addr))
		return app.Listen(addr)
	})

	if cfg.Archive.Enabled {
		if err := startArchive(bpm, cfg.Archive, service); err != nil {
			logger.LogError("Failed to start archive scheduler", err)
			shutdown(app, bpm, db)
			os.Exit(-1)
		}
	}

	logger.LogSystem("Account pool is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-s:
		slog.Info("Shutting down account pool...", slog.String("signal", sig.String()))
	case err := <-bpm.Failed():
		logger.LogError("Background process failed, shutting down", err)
		exitCode = 1
	}

	shutdown(app, bpm, db)
	os.Exit(exitCode)
}

func startArchive(bpm *utils.BackgroundProcessManager, cfg pool.ArchiveConfig, exporter archive.Exporter) error {
	var sinks []archive.Sink
	if cfg.Dir != "" {
		sinks = append(sinks, archive.NewFileSink(cfg.Dir))
	}
	if cfg.Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.StartupTimeout)
		defer cancel()

		s3Sink, err := archive.NewS3Sink(ctx, archive.S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Key:      cfg.Key,
			Secret:   cfg.Secret,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, s3Sink)
	}

	scheduler, err := archive.NewScheduler(archive.NewArchiver(exporter, sinks...), cfg.Schedule, config.BatchQueryTimeout)
	if err != nil {
		return err
	}

	slog.Info("Archive sinks configured",
		slog.String("type", "job"),
		slog.Int("sinks", len(sinks)))

	bpm.StartProcess("archive", scheduler.Run)
	return nil
}

func shutdown(app *fiber.App, bpm *utils.BackgroundProcessManager, db *database.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
	if err := bpm.Shutdown(config.BackgroundStopTimeout); err != nil {
		slog.Error("Background processes did not stop", slog.Any("error", err))
	}
	db.Close()
	slog.Info("Shutdown complete")
}
