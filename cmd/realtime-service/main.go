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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/config"
	"github.com/Masbahul-bari/audio-player/internal/realtime"
)

func main() {
	cfg, err := config.LoadService("8001")
	if err != nil {
		logrus.Fatalf("realtime-service: %v", err)
	}
	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("realtime-service: %v", err)
	}
	frontendBaseURL := getenv("FRONTEND_BASE_URL", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("realtime-service: invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	hub := realtime.NewHub()
	srv := realtime.NewServer(hub, rdb, ctx, frontendBaseURL, log)

	go hub.Run(ctx)
	go srv.RunRedisSubscriber()
	go srv.RunHeartbeat(cfg.HeartbeatInterval)

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Infof("realtime-service listening on :%s", cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("realtime-service: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
