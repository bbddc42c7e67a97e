package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abdifahadi/wamedia-bot/internal/bot"
	"github.com/abdifahadi/wamedia-bot/internal/cache"
	"github.com/abdifahadi/wamedia-bot/internal/config"
	"github.com/abdifahadi/wamedia-bot/internal/download"
	"github.com/abdifahadi/wamedia-bot/internal/http/handlers/admin"
	"github.com/abdifahadi/wamedia-bot/internal/http/handlers/webhook"
	"github.com/abdifahadi/wamedia-bot/internal/http/middleware"
	"github.com/abdifahadi/wamedia-bot/internal/qr"
	"github.com/abdifahadi/wamedia-bot/internal/ratelimit"
	"github.com/abdifahadi/wamedia-bot/internal/store"
	"github.com/abdifahadi/wamedia-bot/internal/wa"
)

func main() {
	// load config
	cfg := config.MustLoad()

	if err := download.ValidatePolicy(cfg.Downloads); err != nil {
		log.Fatal("Invalid download size policy:", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// redis setup
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal("Failed to connect to Redis:", err)
	}
	cancel()
	slog.Info("Connected to Redis", slog.String("address", cfg.Redis.Address))

	if err := os.MkdirAll(cfg.Downloads.TempDir, 0o755); err != nil {
		log.Fatal("Failed to create temp directory:", err)
	}

	// download pipeline
	primary := download.NewYtdlpBackend(download.YtdlpOptions{
		YouTubeCookies:   cfg.Downloads.YouTubeCookies,
		InstagramCookies: cfg.Downloads.InstagramCookies,
		AudioBitrate:     cfg.Downloads.AudioBitrate,
		Logger:           logger,
	})
	fallback := download.NewGalleryDLBackend("", cfg.Downloads.InstagramCookies, logger)

	orchestrator := download.NewOrchestrator(download.Options{
		Primary:        primary,
		Fallback:       fallback,
		Policy:         download.NewSizePolicy(cfg.Downloads),
		TempDir:        cfg.Downloads.TempDir,
		AttemptTimeout: cfg.Downloads.AttemptTimeout,
		EnableFallback: cfg.Downloads.EnableFallback,
		MaxConcurrent:  cfg.Downloads.MaxConcurrent,
		Logger:         logger,
	})

	// messaging
	gateway := wa.NewClient(cfg.WhatsApp.Token, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.GraphBaseURL, logger)
	sessions := store.NewSessionStore(redisClient)
	infoCache := cache.NewInfoCache(redisClient)
	downloadLimiter := ratelimit.NewTokenBucket(redisClient, cfg.RateLimits.DownloadsPerMinute, cfg.RateLimits.DownloadsPerMinute)

	service := bot.NewService(bot.Options{
		Gateway:         gateway,
		QR:              qr.NewGenerator(cfg.Downloads.TempDir, "@abdifahadi"),
		Downloader:      orchestrator,
		Sessions:        sessions,
		InfoCache:       infoCache,
		DownloadLimiter: downloadLimiter,
		QRLimiter:       ratelimit.NewTokenBucket(redisClient, cfg.RateLimits.QRPerMinute, cfg.RateLimits.QRPerMinute),
		Logger:          logger,
	})

	// setup server
	router := http.NewServeMux()

	router.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("WhatsApp media bot is running"))
	})
	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	router.HandleFunc("GET /webhook", webhook.Verify(cfg.WhatsApp.VerifyToken, logger))
	router.Handle("POST /webhook",
		middleware.SignatureMiddleware(cfg.WhatsApp.AppSecret)(webhook.Receive(service, logger)))

	adminAuth := middleware.AuthMiddleware(cfg.WhatsApp.JWTSecret)
	router.Handle("POST /admin/send", adminAuth(admin.SendMessage(gateway, logger)))
	router.Handle("GET /admin/users/{id}", adminAuth(admin.GetUser(sessions, downloadLimiter)))
	router.Handle("POST /admin/users/{id}/ratelimit/reset", adminAuth(admin.ResetRateLimit(downloadLimiter, logger)))
	router.Handle("GET /admin/cache/stats", adminAuth(cache.GetCacheStats(redisClient)))
	router.Handle("DELETE /admin/cache", adminAuth(cache.ClearCache(redisClient)))

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
