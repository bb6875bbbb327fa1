package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bookmarket/internal/app"
	"bookmarket/internal/config"
	"bookmarket/internal/otp"
	"bookmarket/internal/ratelimit"
	"bookmarket/internal/relay"
	"bookmarket/internal/server"
	"bookmarket/internal/util"
	"bookmarket/pkg/auth"
	"bookmarket/pkg/notify"
	"bookmarket/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessions, err := auth.NewSessions(cfg.SessionSecret, sessionTTL)
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	} else {
		slog.Warn("object storage not configured, cover uploads disabled")
	}

	var events notify.Publisher = notify.NopPublisher{}
	if cfg.AMQPURL != "" {
		exchange := cfg.AMQPExchange
		if exchange == "" {
			exchange = "bookmarket.events"
		}
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, exchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer publisher.Close()
		events = publisher
	}

	var resetCodes *otp.Store
	var authLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		resetCodes, err = otp.NewStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("failed to init otp store: %v", err)
		}
		if cfg.AuthRateLimitPerMinute > 0 {
			authLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.AuthRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init rate limiter: %v", err)
			}
		}
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	hub := relay.NewHub()
	defer hub.Close()

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		AdminEmails: cfg.AdminEmails,
		Objects:     objects,
		Events:      events,
		ResetCodes:  resetCodes,
		Relay:       hub,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Sessions:       sessions,
		Hub:            hub,
		AuthLimiter:    authLimiter,
		TrustedProxies: trustedProxies,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SecureCookies:  cfg.SecureCookies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("bookmarket server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
