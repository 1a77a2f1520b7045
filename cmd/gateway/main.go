package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ujian-proctor-gateway/internal/alerting"
	"ujian-proctor-gateway/internal/api"
	"ujian-proctor-gateway/internal/auth"
	"ujian-proctor-gateway/internal/config"
	"ujian-proctor-gateway/internal/geo"
	"ujian-proctor-gateway/internal/status"
	"ujian-proctor-gateway/internal/storage"
	"ujian-proctor-gateway/internal/websocket"
)

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Printf("Error loading config, continuing with defaults: %v", err)
	}
	cfg := &config.AppConfig

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Initialize Components ---
	store := storage.NewMemoryStore()
	watcher := status.NewWatcher(store, nil, cfg.Monitoring.PollInterval())
	hub := websocket.NewHub(watcher)
	watcher.SetBroadcaster(hub)
	notifier := alerting.NewNotifier(hub)
	authMgr := auth.NewManager(*cfg)
	fence := geo.Fence{
		Latitude:    cfg.Geofence.Latitude,
		Longitude:   cfg.Geofence.Longitude,
		Radius:      cfg.Geofence.Radius,
		MinAccuracy: cfg.Geofence.MinAccuracy,
	}

	apiHandler := api.NewAPIHandler(store, watcher, hub, notifier, authMgr, fence)

	// --- Start Hub and Status Watcher ---
	go hub.Run(ctx)
	go watcher.Run(ctx)

	// --- Setup HTTP Servers ---
	dataServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.DataPort),
		Handler: api.SetupDataRouter(apiHandler, authMgr),
	}
	uiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.UIPort),
		Handler: api.SetupUIRouter(apiHandler, authMgr),
	}

	go func() {
		log.Printf("Starting student data server on port %d", cfg.Server.DataPort)
		if err := dataServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Data server ListenAndServe error: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting proctor dashboard server on port %d", cfg.Server.UIPort)
		if err := uiServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("UI server ListenAndServe error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down servers...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := dataServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Data server shutdown error: %v", err)
	}
	if err := uiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("UI server shutdown error: %v", err)
	}

	log.Println("Servers gracefully stopped.")
}
