package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensor-fleet-server/internal/config"
	"sensor-fleet-server/internal/database"
	"sensor-fleet-server/internal/ingestion"
	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/routes"
	"sensor-fleet-server/internal/storage"
	"sensor-fleet-server/pkg/mqtt"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting sensor fleet server",
		zap.String("environment", env),
	)

	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		logger.Fatal("Database configuration is missing. Please set DB_HOST and DB_NAME environment variables.")
	}
	if cfg.Admin.APIToken == "" {
		logger.Warn("ADMIN_API_TOKEN is not set; the admin API will reject all requests")
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	store, err := storage.NewFirmwareStore(cfg.Firmware.Dir)
	if err != nil {
		logger.Fatal("Failed to initialize firmware storage", zap.Error(err))
	}

	router, services := routes.SetupRoutes(cfg, db, store)

	var bridge *ingestion.Bridge
	if cfg.MQTT.Broker != "" {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "sensor-fleet-server"
		}
		bridge = ingestion.NewBridge(
			mqtt.NewClient(&mqtt.Config{
				Broker:   cfg.MQTT.Broker,
				ClientID: clientID,
				Username: cfg.MQTT.Username,
				Password: cfg.MQTT.Password,
			}),
			services.Ingest,
			cfg.MQTT.TopicPrefix,
		)
		if err := bridge.Start(); err != nil {
			logger.Fatal("Failed to start MQTT ingest bridge", zap.Error(err))
		}
		defer bridge.Stop()
	}

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Failed to shutdown server", zap.Error(err))
	}

	logger.Info("Server exited properly")
}
