//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api/handlers"
	"github.com/HirotoShioi/medical-assistant-ai/internal/repository"
	"github.com/HirotoShioi/medical-assistant-ai/internal/server"
	"github.com/HirotoShioi/medical-assistant-ai/internal/service"
	"github.com/HirotoShioi/medical-assistant-ai/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testAPIToken = "e2e-test-token"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment: a pgvector container,
// migrations, and the HTTP server wired with deterministic fake model and
// embedding clients so tests never call an external API.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
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
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with real repositories and fake clients
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	resourceRepo := repository.NewResourceRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	embedder := &fakeEmbedder{}
	model := &fakeModel{}

	resourceSvc := service.NewResourceService(resourceRepo, chunkRepo, embedder, model).
		WithChunkConfig(service.ChunkConfig{TargetChars: 200, MinChars: 50, Overlap: 40})
	retriever := service.NewRetriever(chunkRepo, embedder)
	selection := service.NewSummaryBasedSelection(model, resourceRepo)
	generator := service.NewSectionGenerator(model, selection)
	synthesizer := service.NewDocumentSynthesizer(generator, messageRepo, resourceSvc, nil)

	cfg := server.RouterConfig{
		APIToken:          testAPIToken,
		ResourceHandler:   handlers.NewResourceHandler(resourceSvc),
		RetrieveHandler:   handlers.NewRetrieveHandler(retriever),
		SynthesizeHandler: handlers.NewSynthesizeHandler(synthesizer),
	}

	router := server.NewRouter(cfg)

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

// fakeEmbedder produces a deterministic bag-of-words embedding: each word
// hashes to a dimension. Texts sharing vocabulary get high cosine
// similarity, so ranking behaves like a real embedding model.
type fakeEmbedder struct{}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 1536)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?()[]\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%1536]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

var resourceIDPattern = regexp.MustCompile(`(?m)^- ([0-9a-f-]{36}):`)

// fakeModel answers each pipeline step deterministically, keyed on the
// instruction text the step embeds in its prompt.
type fakeModel struct{}

func (f *fakeModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Summarize the following document"):
		return "Summary: " + firstWords(prompt, 12), nil
	case strings.Contains(prompt, "situate this chunk within the overall document"):
		return "Part of the patient record.", nil
	case strings.Contains(prompt, "Extract the information"):
		return "Extracted facts from the selected documents.", nil
	case strings.Contains(prompt, "Write a prompt for generating"):
		// Keep the section header so the draft step can echo it back.
		return firstLine(prompt), nil
	case strings.Contains(prompt, "Generate the section based"):
		title := strings.TrimPrefix(firstLine(prompt), "# ")
		return fmt.Sprintf("Content for %s based on the patient record.", title), nil
	default:
		return "ok", nil
	}
}

func (f *fakeModel) CompleteJSON(ctx context.Context, system, prompt string, out any) error {
	// Select every candidate resource listed in the prompt.
	ids := []string{}
	for _, m := range resourceIDPattern.FindAllStringSubmatch(prompt, -1) {
		ids = append(ids, m[1])
	}
	raw, err := json.Marshal(map[string][]string{"resource_ids": ids})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
