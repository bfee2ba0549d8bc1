package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"taskmanager/core"
)

func main() {
	flagSet := pflag.NewFlagSet("taskmanager-api", pflag.ContinueOnError)
	configPath := flagSet.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file (env vars override it)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := core.Load(*configPath)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	if cfg.UsesDefaultSecret() {
		log.Printf("WARNING: using the built-in JWT secret; set JWT_SECRET before deploying")
	}

	var (
		users core.UserRepository
		tasks core.TaskRepository
	)
	switch cfg.Storage {
	case core.StorageMemory:
		store := core.NewMemoryStore()
		users, tasks = store.Users(), store.Tasks()
		log.Printf("using in-memory storage; data is lost on restart")
	default:
		db, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer db.Close()
		if err := core.Migrate(ctx, db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		users, tasks = core.NewPgUserRepository(db), core.NewPgTaskRepository(db)
	}

	var credentials core.CredentialStore = users
	if cfg.RedisURL != "" {
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		credentials = core.NewCachedCredentialStore(redisClient, users, cfg.UserCacheTTL)
		log.Printf("credential cache enabled ttl=%s", cfg.UserCacheTTL)
	}

	key, err := core.NewSigningKey([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("invalid signing key: %v", err)
	}
	codec := core.NewTokenCodec(key, cfg.TokenTTL, nil)

	if err := core.BootstrapAdmin(ctx, users, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, core.NewServices(codec, users, tasks, credentials))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting api server on %s storage=%s", srv.Addr, cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
