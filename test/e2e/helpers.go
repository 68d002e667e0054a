//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"

	"github.com/cloo-solutions/bomsearch/internal/api/handlers"
	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/repository"
	"github.com/cloo-solutions/bomsearch/internal/server"
	"github.com/cloo-solutions/bomsearch/internal/service"
	"github.com/cloo-solutions/bomsearch/internal/storage"
	"github.com/cloo-solutions/bomsearch/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	S3Client   *storage.S3Client
	HTTPClient *http.Client

	orchestrator *service.Orchestrator
}

// APIResponse is a decoded response envelope.
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
}

// SetupE2EEnv starts Postgres and RustFS, seeds the catalog and serves the
// API over the keyword strategies.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "bomsearch-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.seedCatalog()
	env.startServer()
	return env
}

// Cleanup releases all resources.
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.orchestrator != nil {
		e.orchestrator.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
}

func (e *E2ETestEnv) seedCatalog() {
	stmts := []string{
		`INSERT INTO material_families (label, name, csi_prefix, synonyms, description) VALUES
			('concrete_block', 'Concrete Masonry Unit', '04 22 00', '{cmu,"cinder block"}', 'hollow load bearing concrete block'),
			('window', 'Windows', '08 50 00', '{glazing}', 'aluminum and vinyl framed windows')`,
		`INSERT INTO catalog_products (vendor, model, family_label, csi_code, description) VALUES
			('Blockco', 'CMU-8', 'concrete_block', '04 22 00', '8" normal weight block'),
			('Blockco', 'CMU-12', 'concrete_block', '04 22 00', '12" normal weight block'),
			('Acme', 'W-100', 'window', '08 51 13', 'aluminum casement window')`,
	}
	for _, stmt := range stmts {
		if _, err := e.Pool.Exec(e.Ctx, stmt); err != nil {
			e.T.Fatalf("failed to seed catalog: %v", err)
		}
	}
}

func (e *E2ETestEnv) startServer() {
	log := zaptest.NewLogger(e.T)

	cfg := service.DefaultOrchestratorConfig()
	cfg.DefaultMode = domain.SearchModeFamilyFirst
	families := repository.NewFamilyRepository(e.Pool)

	orchestrator, err := service.NewOrchestrator(cfg, service.Dependencies{
		Families:    families,
		Products:    repository.NewProductRepository(e.Pool),
		Enrichments: repository.NewEnrichmentRepository(e.Pool, log),
		Logger:      log,
	})
	if err != nil {
		e.T.Fatalf("failed to build orchestrator: %v", err)
	}
	e.orchestrator = orchestrator

	searchLog := service.NewSearchLogger(repository.NewSearchLogRepository(e.Pool), log)
	e.Server = httptest.NewServer(server.NewRouter(server.RouterConfig{
		Logger:         log,
		SearchHandler:  handlers.NewSearchHandler(orchestrator, searchLog),
		CatalogHandler: handlers.NewCatalogHandler(families),
	}))
}

// Get performs a GET request against the test server.
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	apiResp.StatusCode = resp.StatusCode
	return &apiResp, nil
}

// DownloadFile fetches a presigned URL.
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
