// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/pobudka/internal/auth"
	"github.com/jason-s-yu/pobudka/internal/cache"
	"github.com/jason-s-yu/pobudka/internal/config"
	"github.com/jason-s-yu/pobudka/internal/database"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/handlers"
	"github.com/jason-s-yu/pobudka/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ttl, err := cfg.TokenTTL()
	if err != nil {
		logger.Fatal(err)
	}
	keys, err := loadKeys(cfg, ttl)
	if err != nil {
		logger.Fatalf("auth keys: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	store := database.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	opts := []room.Option{
		room.WithEngine(game.NewEngine(nil)),
		room.WithRoster(store),
		room.WithRecorder(store),
		room.WithLogger(logger.WithField("component", "room")),
	}
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warnf("Redis unavailable, action feed disabled: %v", err)
	} else {
		defer rdb.Close()
		opts = append(opts, room.WithFeed(cache.NewActionFeed(rdb, cfg.HistorianQueue)))
		if cfg.RedisRoomLocks {
			opts = append(opts, room.WithLocker(cache.NewRoomLocker(rdb, cfg.RoomLockTTL)))
			logger.Info("Using Redis room locks")
		}
	}
	svc := room.NewService(store, store, opts...)

	api := handlers.NewServer(logger, svc, keys, store)
	api.SetStats(store)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}

// loadKeys reads the signing keys from disk, or generates a pair that lives as
// long as the process.
func loadKeys(cfg config.Config, ttl time.Duration) (*auth.Keys, error) {
	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		return auth.LoadKeys(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, ttl)
	}
	logrus.Warn("JWT key paths not set, generating ephemeral keys")
	return auth.NewKeys(ttl)
}
