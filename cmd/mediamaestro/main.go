package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/config"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/database"
	"github.com/pavithrahatharasinghe/MediaMaestro/internal/server"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Secrets may come from a local .env; missing file is fine
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// Make sure the media root exists and is writable
	if err := cfg.EnsureMediaRoot(); err != nil {
		logger.WithError(err).WithField("media_root", cfg.Media.RootDir).Fatal("Media root is not usable")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing database")
	}
	defer db.Close()

	// Create and configure the media server
	mediaServer, err := server.NewMediaServer(cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error creating media server")
	}

	// Warn early when the tree has nothing to reconcile
	if inventory, err := mediaServer.Library().ScanAll(); err != nil {
		logger.WithError(err).Warn("Initial library scan failed")
	} else if len(inventory.Playlists) == 0 {
		logger.WithField("media_root", cfg.Media.RootDir).Warn("No playlist directories found in media root")
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := mediaServer.Start(); err != nil {
			logger.WithError(err).Error("Server stopped")
			c <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-c

	logger.Info("Received shutdown signal")
	mediaServer.Shutdown()
}
