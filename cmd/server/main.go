package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/univote/ballotbox/internal/adapters/handler/http"
	"github.com/univote/ballotbox/internal/adapters/repository/postgres"
	redisrepo "github.com/univote/ballotbox/internal/adapters/repository/redis"
	"github.com/univote/ballotbox/internal/adapters/votingapi"
	"github.com/univote/ballotbox/internal/core/ports"
	"github.com/univote/ballotbox/internal/core/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	platformURL := os.Getenv("ELECTION_PLATFORM_URL")
	if platformURL == "" {
		log.Fatal("ELECTION_PLATFORM_URL is required")
	}
	apiClient := votingapi.NewClient(platformURL, nil)

	drafts, cleanup, err := newDraftRepository(logger)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	registry := services.NewRegistry(apiClient, apiClient, drafts, logger)
	defer registry.Close()
	receipts := services.NewReceiptService(apiClient, logger)

	handler := http.NewHandler(
		http.NewSessionHandler(registry),
		http.NewReceiptHandler(receipts),
		[]byte(jwtSecret),
	)
	server := &stdhttp.Server{Addr: "0.0.0.0:8080", Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("voting session service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	fmt.Println("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}

// newDraftRepository picks the draft store: redis when REDIS_ADDR is set,
// postgres otherwise.
func newDraftRepository(logger *slog.Logger) (ports.DraftRepository, func(), error) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		logger.Info("using redis draft store", "addr", addr)
		return redisrepo.NewDraftRepository(client), func() { client.Close() }, nil
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_HOST"), os.Getenv("POSTGRES_PORT"), os.Getenv("POSTGRES_DB"))
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("using postgres draft store")
	return postgres.NewDraftRepository(db), func() { db.Close() }, nil
}
