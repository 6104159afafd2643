package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"payment-approval/internal/clients"
	"payment-approval/internal/config"
	"payment-approval/internal/repository"
	"payment-approval/internal/service"
	"payment-approval/internal/transport/auth"
	"payment-approval/internal/transport/rest"
	"payment-approval/internal/transport/websocket"
	"payment-approval/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	storageClient, err := clients.NewLocalStorage(cfg.StorageDir, cfg.FilesPublicPrefix, cfg.ExternalURL)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}

	var s3Client *clients.S3Client
	if cfg.S3.Enabled {
		s3Client, err = clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Fatalf("s3 init error: %v", err)
		}
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	paymentRepo := repository.NewPaymentRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	verificationRepo := repository.NewVerificationLogRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	tokenRepo := repository.NewPersonalAccessTokenRepository(db)

	settingsSvc := service.NewSettingsService(settingsRepo, redisClient)
	workflowSvc := service.NewWorkflowService(paymentRepo, auditRepo, userRepo, settingsSvc, wsClient)
	qrSvc := service.NewQRService(cfg.ExternalURL, paymentRepo, settingsSvc)
	verifySvc := service.NewVerifyService(paymentRepo, verificationRepo, settingsSvc)
	voucherSvc := service.NewVoucherService(paymentRepo, qrSvc, storageClient, s3Client)
	exportSvc := service.NewExportService(verificationRepo, redisClient, storageClient, wsClient)

	tokenMiddleware := auth.TokenMiddleware(tokenRepo)

	handler := rest.NewHandler(workflowSvc, verifySvc, qrSvc, voucherSvc, exportSvc, exportSvc)
	router := handler.InitRouterWithAuth(tokenMiddleware)

	// public root router: verification pages, generated files and health stay
	// open, everything else goes through the token middleware
	root := chi.NewRouter()

	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	root.Mount("/payment", handler.InitPublicRouter())

	root.Get("/files/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		path := filepath.Join(storageClient.BaseDir, filepath.Base(file))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		// prefer original filename in Content-Disposition (strip random prefix)
		orig := file
		if idx := strings.IndexByte(file, '_'); idx >= 0 {
			orig = file[idx+1:]
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", orig))

		http.ServeFile(w, r, path)
	})

	// protected websocket endpoint; the token middleware already resolved the
	// user before this handler runs
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.GetUserID(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		log.Printf("[WS] connected: user_id=%d", userID)
		wsHub.HandleWebSocket(w, r, userID)
	})

	root.Mount("/api", router)

	corsHandler := withCORS(root)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// background cleaner for generated files
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := storageClient.CleanupOlderThan(30 * time.Minute); err != nil {
					log.Printf("storage cleanup error: %v", err)
				}
			}
		}
	}()

	// verification log retention
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -cfg.VerificationRetentionDays)
				deleted, err := verificationRepo.DeleteOlderThan(ctx, cutoff)
				if err != nil {
					log.Printf("verification retention error: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("verification retention: removed %d records older than %s", deleted, cutoff.Format("2006-01-02"))
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		cancel()

		postgres.Close(db)
		redisClient.Close()

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		PoolSize:    cfg.PoolSize,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
