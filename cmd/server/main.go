package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meet-signal/internal/auth"
	"meet-signal/internal/config"
	"meet-signal/internal/handlers"
	"meet-signal/internal/services"
	"meet-signal/internal/storage"
	"meet-signal/internal/telemetry"
	"meet-signal/internal/websocket"
	"meet-signal/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialise tracing: %v", err)
	}

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialise upload storage: %v", err)
	}

	// Room table and event loop
	registry := services.NewConnectionRegistry()
	roomService := services.NewRoomService(registry, services.RoomOptions{
		DeleteEmptyRooms: cfg.Rooms.DeleteEmptyRooms,
		HistoryLimit:     cfg.Rooms.HistoryLimit,
	})
	hub := websocket.NewHub(roomService, registry, cfg.Signaling)
	go hub.Run()

	sweeper := services.NewSweeper(hub, cfg.Rooms.SweepInterval, cfg.Rooms.Retention)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to schedule room sweeper: %v", err)
	}

	uploadHandlers := handlers.NewUploadHandlers(store, auth.NewService(cfg.Upload), cfg.Upload)
	router := handlers.NewRouter(cfg, hub, uploadHandlers)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	sweeper.Stop(shutdownCtx)
	hub.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown: %v", err)
	}
	logger.Info("Server stopped")
}

// newBlobStore uses S3 when an endpoint is configured and the local upload
// directory otherwise.
func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.S3.Endpoint == "" {
		logger.Info("Storing uploads in %s", cfg.Upload.Dir)
		return storage.NewDiskStore(cfg.Upload.Dir)
	}

	s3, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Bucket:    cfg.S3.Bucket,
		LinkTTL:   cfg.Upload.LinkTTL,
	})
	if err != nil {
		return nil, err
	}

	bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s3.EnsureBucket(bucketCtx); err != nil {
		return nil, err
	}
	logger.Info("Storing uploads in bucket %s at %s", cfg.S3.Bucket, cfg.S3.Endpoint)
	return s3, nil
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   GET  /ws")
	logger.Info("   POST /api/upload")
	logger.Info("   GET  /uploads/{meetingId}/{file}")
	logger.Info("   GET  /api/meetings/{id}")
	logger.Info("   GET  /api/meetings/{id}/participants")
	logger.Info("   GET  /healthz")
	logger.Info("   GET  /metrics")
}
