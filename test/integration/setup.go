package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	handler "github.com/univote/ballotbox/internal/adapters/handler/http"
	repo "github.com/univote/ballotbox/internal/adapters/repository/postgres"
	"github.com/univote/ballotbox/internal/adapters/votingapi"
	"github.com/univote/ballotbox/internal/core/domain"
	"github.com/univote/ballotbox/internal/core/ports"
	"github.com/univote/ballotbox/internal/core/services"
)

const testJWTSecret = "test-secret"

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func applyMigrations(db *sql.DB) error {
	dirPath := "../../internal/adapters/repository/postgres/migrations"

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// fakePlatform is an in-memory stand-in for the remote election platform,
// implementing the subset of its API the service talks to. Casts are
// idempotent per Idempotency-Key, as the real platform guarantees.
type fakePlatform struct {
	mu        sync.Mutex
	rules     domain.ElectionRules
	sessions  map[uuid.UUID]*domain.VotingSession
	votedKeys map[string]domain.VoteReceipt
	castCount int
}

func newFakePlatform() *fakePlatform {
	position := domain.PositionRule{
		ID:            uuid.New(),
		Name:          "Student Body President",
		MinSelections: 1,
		MaxSelections: 1,
		CandidateIDs:  []uuid.UUID{uuid.New(), uuid.New()},
	}
	return &fakePlatform{
		rules: domain.ElectionRules{
			ElectionID:          uuid.New(),
			RequireAllPositions: true,
			AllowAbstain:        true,
			Positions:           []domain.PositionRule{position},
		},
		sessions:  make(map[uuid.UUID]*domain.VotingSession),
		votedKeys: make(map[string]domain.VoteReceipt),
	}
}

func (p *fakePlatform) handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/elections/{electionID}/voting-sessions", func(w http.ResponseWriter, req *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		now := time.Now()
		session := &domain.VotingSession{
			ID:         uuid.New(),
			ElectionID: p.rules.ElectionID,
			Status:     domain.SessionActive,
			StartedAt:  now,
			ExpiresAt:  now.Add(30 * time.Minute),
		}
		p.sessions[session.ID] = session
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(session)
	})

	r.Post("/v1/voting-sessions/{sessionID}/end", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/v1/voting-sessions/{sessionID}/complete", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Put("/v1/voting-sessions/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
		sessionID, _ := uuid.Parse(chi.URLParam(req, "sessionID"))
		var body struct {
			Minutes int `json:"minutes"`
		}
		json.NewDecoder(req.Body).Decode(&body)
		p.mu.Lock()
		defer p.mu.Unlock()
		session, ok := p.sessions[sessionID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		session.ExpiresAt = session.ExpiresAt.Add(time.Duration(body.Minutes) * time.Minute)
		json.NewEncoder(w).Encode(session)
	})

	r.Post("/v1/votes", func(w http.ResponseWriter, req *http.Request) {
		key := req.Header.Get("Idempotency-Key")
		p.mu.Lock()
		defer p.mu.Unlock()
		if receipt, seen := p.votedKeys[key]; seen {
			json.NewEncoder(w).Encode(receipt)
			return
		}
		var draft domain.BallotDraft
		json.NewDecoder(req.Body).Decode(&draft)
		p.castCount++
		receipt := domain.VoteReceipt{
			SessionID:        draft.SessionID,
			VerificationCode: fmt.Sprintf("VC-%06d", p.castCount),
			ReceiptHash:      uuid.NewString(),
			Timestamp:        time.Now().UTC(),
		}
		p.votedKeys[key] = receipt
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(receipt)
	})

	r.Get("/v1/elections/{electionID}/voting-status", func(w http.ResponseWriter, req *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		json.NewEncoder(w).Encode(ports.VotingStatus{HasVoted: len(p.votedKeys) > 0})
	})

	r.Get("/v1/votes/history", func(w http.ResponseWriter, req *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		receipts := make([]domain.VoteReceipt, 0, len(p.votedKeys))
		for _, receipt := range p.votedKeys {
			receipts = append(receipts, receipt)
		}
		json.NewEncoder(w).Encode(receipts)
	})

	r.Post("/v1/votes/verify", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			VerificationCode string `json:"verification_code"`
		}
		json.NewDecoder(req.Body).Decode(&body)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, receipt := range p.votedKeys {
			if receipt.VerificationCode == body.VerificationCode {
				verified := receipt
				verified.Verified = true
				json.NewEncoder(w).Encode(ports.VerifyResult{Verified: true, Receipt: &verified})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "RECEIPT_NOT_FOUND", "message": "unknown verification code"})
	})

	r.Post("/v1/voting-issues", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	r.Get("/v1/elections/{electionID}/rules", func(w http.ResponseWriter, req *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		json.NewEncoder(w).Encode(p.rules)
	})

	return r
}

func (p *fakePlatform) casts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.castCount
}

type TestApp struct {
	DB          *sql.DB
	DBContainer testcontainers.Container
	Platform    *fakePlatform
	Drafts      ports.DraftRepository
	Registry    *services.Registry
	Server      *httptest.Server
	Client      *http.Client

	platformServer *httptest.Server
	logger         *slog.Logger
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	require.NoError(t, applyMigrations(db))

	platform := newFakePlatform()
	platformServer := httptest.NewServer(platform.handler())

	apiClient := votingapi.NewClient(platformServer.URL, nil)
	drafts := repo.NewDraftRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := services.NewRegistry(apiClient, apiClient, drafts, logger)

	sessionHandler := handler.NewSessionHandler(registry)
	receiptHandler := handler.NewReceiptHandler(services.NewReceiptService(apiClient, logger))
	router := handler.NewHandler(sessionHandler, receiptHandler, []byte(testJWTSecret))

	server := httptest.NewServer(router)

	return &TestApp{
		DB:             db,
		DBContainer:    dbContainer,
		Platform:       platform,
		Drafts:         drafts,
		Registry:       registry,
		Server:         server,
		Client:         server.Client(),
		platformServer: platformServer,
		logger:         logger,
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Registry.Close()
	app.Server.Close()
	app.platformServer.Close()
	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

// restart simulates a browser reload: a fresh registry over the same
// persistent store, with no in-memory session state.
func (app *TestApp) restart() {
	app.Registry.Close()
	apiClient := votingapi.NewClient(app.platformServer.URL, nil)
	app.Registry = services.NewRegistry(apiClient, apiClient, app.Drafts, app.logger)

	sessionHandler := handler.NewSessionHandler(app.Registry)
	receiptHandler := handler.NewReceiptHandler(services.NewReceiptService(apiClient, app.logger))
	router := handler.NewHandler(sessionHandler, receiptHandler, []byte(testJWTSecret))

	app.Server.Close()
	app.Server = httptest.NewServer(router)
	app.Client = app.Server.Client()
}

func voterToken(t *testing.T, voterID uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": voterID.String(),
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}
