//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/config"
	"github.com/cloo-solutions/coverdraft/internal/index"
	"github.com/cloo-solutions/coverdraft/internal/jobs"
	"github.com/cloo-solutions/coverdraft/internal/llm"
	"github.com/cloo-solutions/coverdraft/internal/repository"
	"github.com/cloo-solutions/coverdraft/internal/server"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/cloo-solutions/coverdraft/internal/storage"
	"github.com/cloo-solutions/coverdraft/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	e2eToken     = "e2e-secret-token"
	e2eDimension = 128
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.SourceStore
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, wires the full service stack with
// the hash embedder and serves it on a free port.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewSourceStore(ctx, storage.Config{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSAccessKey,
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		S3Client:     s3Client,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries compiles the coverdraft CLI into a temp dir.
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "coverdraft-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "coverdraft"), "./cmd/coverdraft")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build coverdraft: %v\n%s", err, out)
	}
}

// RunCoverdraft runs the coverdraft CLI against the test server.
func (e *E2ETestEnv) RunCoverdraft(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "coverdraft"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"COVERDRAFT_API_TOKEN="+e2eToken,
		"COVERDRAFT_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+workDir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, e2eToken)
}

func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body, e2eToken)
}

func (e *E2ETestEnv) Patch(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PATCH", path, body, e2eToken)
}

func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, e2eToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return e.send(req)
}

// Upload posts a file as multipart form data with optional form fields.
func (e *E2ETestEnv) Upload(filename string, content []byte, fields map[string]string) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(e.Ctx, "POST", e.ServerURL+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e2eToken)
	return e.send(req)
}

func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &APIResponse{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to parse response (%d): %s", resp.StatusCode, data)
	}
	return out, nil
}

// Decode unmarshals the data envelope of a successful response.
func (e *E2ETestEnv) Decode(resp *APIResponse, v interface{}) {
	e.T.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		e.T.Fatalf("failed to decode response data: %v (%s)", err, resp.Data)
	}
}

// WaitIndexed polls a document until the worker has finished with it.
func (e *E2ETestEnv) WaitIndexed(id string) *handlers.DocumentResponse {
	e.T.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/documents/" + id)
		if err != nil {
			e.T.Fatalf("failed to get document: %v", err)
		}
		var doc handlers.DocumentResponse
		e.Decode(resp, &doc)
		if doc.IndexStatus != "pending" {
			return &doc
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %s was not indexed in time", id)
	return nil
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

// NewDocumentService builds a document service over a fresh index, the way a
// restarted server would.
func NewDocumentService(pool *pgxpool.Pool, idx *index.Memory) *service.DocumentService {
	return service.NewDocumentService(service.DocumentServiceDeps{
		Documents: repository.NewDocumentRepository(pool),
		Chunks:    repository.NewChunkRepository(pool),
		TxRunner:  repository.NewTxRunner(pool),
		Index:     idx,
		Weights:   service.NewWeightCalculator(config.DefaultWeighting(), nil),
	})
}

func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.SourceStore, port int) (string, func()) {
	docRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIndexJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	idx := index.NewMemory()
	weights := service.NewWeightCalculator(config.DefaultWeighting(), nil)
	embedder := llm.NewHashEmbedder(e2eDimension)

	documents := service.NewDocumentService(service.DocumentServiceDeps{
		Documents: docRepo,
		Chunks:    repository.NewChunkRepository(pool),
		TxRunner:  txRunner,
		Index:     idx,
		Weights:   weights,
		Blobs:     s3Client,
	})
	indexing := service.NewIndexingService(embedder, docRepo, txRunner, idx, service.IndexingConfig{Concurrency: 2})
	retriever := service.NewRetriever(idx, embedder, weights, 3, 5*time.Second)

	registry := llm.NewRegistry(llm.TemplateProvider)
	registry.Register(llm.TemplateGenerator{})
	generation := service.NewGenerationService(retriever, idx, registry, service.GenerationConfig{ContextBudget: 4000})
	letters := service.NewCoverLetterService(service.CoverLetterServiceDeps{
		Letters:   repository.NewCoverLetterRepository(pool),
		Generator: generation,
	})

	worker := jobs.NewWorker(jobs.NewIndexWorker(jobRepo, indexing), 50*time.Millisecond)
	documents.NotifyOnEnqueue(worker.Notify)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	router := server.NewRouter(server.RouterConfig{
		APITokens:        []string{e2eToken},
		DocumentHandler:  handlers.NewDocumentHandler(documents, weights, 0),
		RetrievalHandler: handlers.NewRetrievalHandler(retriever, documents, generation, registry),
		LetterHandler:    handlers.NewCoverLetterHandler(letters),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		worker.Stop()
		cancelWorker()
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
