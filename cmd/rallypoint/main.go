package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rallypoint/rallypoint/internal/auth"
	"github.com/rallypoint/rallypoint/internal/backup"
	"github.com/rallypoint/rallypoint/internal/database"
	"github.com/rallypoint/rallypoint/internal/logging"
	"github.com/rallypoint/rallypoint/internal/middleware"
	"github.com/rallypoint/rallypoint/internal/server"
)

const (
	sweepInterval    = 6 * time.Hour
	accessJWKSTTL    = time.Hour
	sessionSweepTick = time.Hour
)

func main() {
	logger := logging.Setup(os.Getenv("RALLYPOINT_LOG_LEVEL"))

	port := os.Getenv("RALLYPOINT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("RALLYPOINT_DB_PATH")
	if dbPath == "" {
		dbPath = "rallypoint.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	retentionDays := 30
	if v := os.Getenv("RALLYPOINT_BACKUP_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retentionDays = n
		}
	}

	cfg := server.Config{
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("RALLYPOINT_S3_ENDPOINT"),
				Bucket:    os.Getenv("RALLYPOINT_S3_BUCKET"),
				Region:    envOr("RALLYPOINT_S3_REGION", "auto"),
				AccessKey: os.Getenv("RALLYPOINT_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("RALLYPOINT_S3_SECRET_KEY"),
			},
			RetentionDays: retentionDays,
		},
		SecureCookies: os.Getenv("RALLYPOINT_SECURE_COOKIES") == "true",
	}

	if issuer := os.Getenv("RALLYPOINT_ACCESS_ISSUER"); issuer != "" {
		cfg.Access = middleware.AccessConfig{
			Issuer:   issuer,
			Verifier: auth.NewVerifier(os.Getenv("RALLYPOINT_ACCESS_AUDIENCE"), accessJWKSTTL),
		}
	}

	srv := server.New(db, cfg, logger)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	srv.BackupManager().Start(sweepCtx, sweepInterval)

	go func() {
		ticker := time.NewTicker(sessionSweepTick)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(sweepCtx); err == nil && n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Rallypoint running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	cancelSweep()
	srv.BackupManager().Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
