package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hangapp/hang/internal/broker"
	"github.com/hangapp/hang/internal/config"
	"github.com/hangapp/hang/internal/log"
	"github.com/hangapp/hang/internal/meeting"
	"github.com/hangapp/hang/internal/server"
	"github.com/hangapp/hang/internal/storage"
)

// cleanupInterval is how often expired flow state is reaped from
// storage. Entries are also checked lazily on read, so this only bounds
// garbage accumulation, not correctness.
const cleanupInterval = 5 * time.Minute

// Hang is the assembled broker application
type Hang struct {
	config     config.Config
	httpServer *server.HTTPServer
	cleanup    *storage.CleanupManager
	closeStore func() error
}

// NewHang builds the application from configuration
func NewHang(ctx context.Context, cfg config.Config) (*Hang, error) {
	srv := cfg.Server

	log.LogInfoWithFields("hang", "Building broker application", map[string]any{
		"baseURL": srv.BaseURL,
		"storage": string(srv.Storage),
		"zoom":    srv.Zoom.Configured(),
	})

	store, cleaner, closeStore, err := setupStorage(ctx, srv)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	httpClient := &http.Client{Timeout: srv.HTTPClientTimeout}

	b := broker.New(store, broker.Options{
		BaseURL: srv.BaseURL,
		Google: broker.Credentials{
			ClientID:     srv.Google.ClientID,
			ClientSecret: string(srv.Google.ClientSecret),
		},
		Zoom: broker.Credentials{
			ClientID:     srv.Zoom.ClientID,
			ClientSecret: string(srv.Zoom.ClientSecret),
		},
		SigningKey: []byte(srv.SigningSecret),
		HTTPClient: httpClient,
	})

	handlers := server.NewHandlers(b,
		meeting.NewGoogleCreator(b, httpClient),
		meeting.NewZoomCreator(b, httpClient, ""),
	)

	return &Hang{
		config:     cfg,
		httpServer: server.NewHTTPServer(handlers.Routes(), srv.Addr),
		cleanup:    storage.NewCleanupManager(cleaner, cleanupInterval),
		closeStore: closeStore,
	}, nil
}

// Run starts the application and blocks until shutdown
func (h *Hang) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.cleanup.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := h.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("hang", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("hang", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := h.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("hang", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	h.cleanup.Stop()

	if h.closeStore != nil {
		if err := h.closeStore(); err != nil {
			log.LogWarnWithFields("hang", "Failed to close storage", map[string]any{
				"error": err.Error(),
			})
		}
	}

	log.LogInfoWithFields("hang", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStorage creates the key-value store named by configuration
func setupStorage(ctx context.Context, srv config.ServerConfig) (storage.Store, storage.Cleaner, func() error, error) {
	switch srv.Storage {
	case config.StorageFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    srv.GCPProject,
			"database":   srv.FirestoreDatabase,
			"collection": srv.FirestoreCollection,
		})
		store, err := storage.NewFirestoreStore(ctx, srv.GCPProject, srv.FirestoreDatabase, srv.FirestoreCollection)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil
	default:
		log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
		store := storage.NewMemoryStore()
		return store, store, nil, nil
	}
}
