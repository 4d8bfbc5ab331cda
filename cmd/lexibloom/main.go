package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexibloom/lexibloom/internal/archive"
	"github.com/lexibloom/lexibloom/internal/database"
	"github.com/lexibloom/lexibloom/internal/logging"
	"github.com/lexibloom/lexibloom/internal/reconcile"
	"github.com/lexibloom/lexibloom/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("LEXIBLOOM_LOG_LEVEL"), os.Getenv("LEXIBLOOM_LOG_FORMAT"))

	port := os.Getenv("LEXIBLOOM_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("LEXIBLOOM_DB_PATH")
	if dbPath == "" {
		dbPath = "lexibloom.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, logger)

	ctx := context.Background()

	sweepInterval := reconcile.DefaultSweepInterval
	if raw := os.Getenv("LEXIBLOOM_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweepInterval = d
		} else {
			logger.Warn("invalid sweep interval, using default", "value", raw)
		}
	}
	sweeper := reconcile.NewSweeper(srv.Reconciler(), srv.Hub(), sweepInterval, logger.With("component", "sweeper"))
	sweeper.Start(ctx)
	defer sweeper.Stop()

	archiveInterval := 24 * time.Hour
	if raw := os.Getenv("LEXIBLOOM_ARCHIVE_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			archiveInterval = d
		}
	}
	archiver := archive.NewManager(archive.Config{
		S3: archive.S3Config{
			Endpoint:  os.Getenv("LEXIBLOOM_ARCHIVE_S3_ENDPOINT"),
			Bucket:    os.Getenv("LEXIBLOOM_ARCHIVE_S3_BUCKET"),
			Region:    os.Getenv("LEXIBLOOM_ARCHIVE_S3_REGION"),
			AccessKey: os.Getenv("LEXIBLOOM_ARCHIVE_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("LEXIBLOOM_ARCHIVE_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("LEXIBLOOM_ARCHIVE_PASSPHRASE"),
		Interval:   archiveInterval,
	}, db, logger.With("component", "archive"))
	if archiver.Enabled() {
		archiver.Start(ctx)
		defer archiver.Stop()
	} else {
		logger.Info("ledger archive disabled")
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("lexibloom progress engine listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
