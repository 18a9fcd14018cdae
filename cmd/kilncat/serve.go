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

	"github.com/clayloft/kilncat"
	"github.com/clayloft/kilncat/auth"
	"github.com/clayloft/kilncat/config"
	"github.com/clayloft/kilncat/database"
	"github.com/clayloft/kilncat/filesystem"
	kilnhttp "github.com/clayloft/kilncat/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the kilncat catalog HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	if cfg.Auth.Issuer == "" || cfg.Auth.Audience == "" || cfg.Auth.KeysURL == "" {
		return errors.New("auth.issuer, auth.audience, and auth.keys_url must be configured")
	}
	if cfg.Signing.Secret == "" {
		return errors.New("signing.secret must be configured")
	}

	repo, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()
	slog.Info("connected to database", "type", cfg.Database.Type)

	if err = os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage root: %w", err)
	}
	defer func() { _ = root.Close() }()

	signer, err := kilncat.NewURLSigner(cfg.Signing.Secret)
	if err != nil {
		return fmt.Errorf("create url signer: %w", err)
	}

	blobs, err := filesystem.NewBlobStore(root, signer, cfg.Signing.BaseURL)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}

	service, err := kilncat.NewCatalogService(repo, blobs, kilncat.ServiceConfig{
		SignedURLTTL:   time.Duration(cfg.Signing.TTLMinutes) * time.Minute,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create catalog service: %w", err)
	}

	verifier, err := auth.NewVerifier(auth.Config{
		KeysURL:         cfg.Auth.KeysURL,
		Issuer:          cfg.Auth.Issuer,
		Audience:        cfg.Auth.Audience,
		RefreshInterval: cfg.Auth.KeyCacheTTL,
	})
	if err != nil {
		return fmt.Errorf("create token verifier: %w", err)
	}

	handlerConfig := kilnhttp.HandlerConfig{
		MaxUploadBytes: cfg.Server.MaxUploadSize,
		RequestTimeout: time.Duration(cfg.Service.OpTimeout) * time.Second,
		CORS:           cfg.CORS,
	}
	handler := kilnhttp.NewHandler(&handlerConfig, service, blobs, signer, verifier)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
