package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/leduyhoang1994/quivr/internal/config"
	"github.com/leduyhoang1994/quivr/internal/handler"
	"github.com/leduyhoang1994/quivr/internal/service/answer"
	brainService "github.com/leduyhoang1994/quivr/internal/service/brain"
	chatService "github.com/leduyhoang1994/quivr/internal/service/chat"
	promptService "github.com/leduyhoang1994/quivr/internal/service/prompt"
	usageService "github.com/leduyhoang1994/quivr/internal/service/usage"
	"github.com/leduyhoang1994/quivr/internal/storage"
	memoryStore "github.com/leduyhoang1994/quivr/internal/storage/memory"
	redisStore "github.com/leduyhoang1994/quivr/internal/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := newStore(ctx, cfg.Redis)

	if !cfg.AI.Enabled() {
		log.Println("warning: no LLM credentials configured, question endpoints will fail")
	}
	if len(cfg.Auth.APIKeys) == 0 {
		log.Println("warning: API_KEYS is empty, every request will be rejected")
	}

	chatSvc := chatService.NewService(store)
	promptSvc := promptService.NewService(store, cfg.AI.SystemMessage)
	brainSvc := brainService.NewService(store, cfg.AI.MaxBrains)
	usageSvc := usageService.NewService(store, cfg.AI.DailyChatCredit)
	factory := answer.NewFactory(store, promptSvc, brainSvc, cfg.AI)

	router := handler.NewRouter(cfg, chatSvc, brainSvc, promptSvc, usageSvc, factory)

	startServer(ctx, cfg.Server, router)
}

// newStore selects Redis persistence when configured, otherwise the in-memory
// store.
func newStore(ctx context.Context, cfg config.RedisConfig) storage.Store {
	if !cfg.Enabled() {
		log.Println("REDIS_ADDR not set, using in-memory storage")
		return memoryStore.NewStore()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("failed to connect to redis at %s: %v", cfg.Addr, err)
	}
	log.Printf("using redis storage at %s", cfg.Addr)
	return redisStore.NewStore(rdb)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("quivr backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
