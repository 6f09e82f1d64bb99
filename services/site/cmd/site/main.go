package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"clinicsite/internal/obs"
	"clinicsite/internal/util"
	"clinicsite/pkg/storage"
	"clinicsite/services/site/internal/app"
	"clinicsite/services/site/internal/config"
	"clinicsite/services/site/internal/server"
	filestorage "clinicsite/services/site/internal/storage"
	"clinicsite/services/site/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("invalid trustedProxyCidrs: %v", err)
	}

	contentStore, err := store.NewJSONStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to init content store: %v", err)
	}

	var sessions store.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		redisSessions, err := store.NewRedisSessions(cfg.RedisAddr, cfg.RedisPassword, "", sessionTTL)
		if err != nil {
			log.Fatalf("failed to init redis sessions: %v", err)
		}
		defer redisSessions.Close()
		sessions = redisSessions
	default:
		sessions = store.NewMemorySessions(sessionTTL)
	}

	var (
		images    app.ImageStore
		presigner server.Presigner
	)
	if cfg.MinioEndpoint != "" {
		objects, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		images, presigner = objects, objects
	} else {
		files, err := filestorage.NewFileStore(cfg.StaticDir)
		if err != nil {
			log.Fatalf("failed to init image storage: %v", err)
		}
		images = files
	}

	metrics := obs.NewMetrics()
	appCore, err := app.New(app.Config{
		Store:         contentStore,
		Sessions:      sessions,
		Locales:       store.NewLocaleStore(cfg.LocalesDir, cfg.FallbackLang),
		Images:        images,
		Metrics:       metrics,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Metrics:        metrics,
		StaticDir:      cfg.StaticDir,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustedProxies: trusted,
		Presigner:      presigner,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer httpServer.Close()

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

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr, "static_dir", cfg.StaticDir, "session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
