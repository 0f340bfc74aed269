package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/config"
	"github.com/Masbahul-bari/audio-player/internal/playlist"
)

func main() {
	cfg, err := config.LoadService("8000")
	if err != nil {
		logrus.Fatalf("playlist-service: %v", err)
	}
	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("playlist-service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("playlist-service: pg: %v", err)
	}
	defer pool.Close()
	if err := playlist.AutoMigrate(ctx, pool); err != nil {
		log.Fatalf("playlist-service: %v", err)
	}
	if cfg.SeedLibrary {
		tracks, err := playlist.LoadLibrary(os.Getenv("LIBRARY_PATH"))
		if err != nil {
			log.Fatalf("playlist-service: %v", err)
		}
		n, err := playlist.SeedLibrary(ctx, pool, tracks)
		if err != nil {
			log.Fatalf("playlist-service: %v", err)
		}
		log.WithField("added", n).Info("playlist-service: library seeded")
	}

	// Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("playlist-service: invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	srv := playlist.NewServer(playlist.NewPostgresStore(pool), playlist.NewRedisPublisher(rdb, log), cfg.JWTSecret, log)
	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Infof("playlist-service listening on :%s", cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("playlist-service: %v", err)
	}
}
