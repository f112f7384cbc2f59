package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planrelay/pkg/config"
	"planrelay/pkg/llm"
	"planrelay/pkg/llmerrors"
	"planrelay/pkg/plan"
)

const exampleBody = `{"age":6,"sessions":4,"objective":"conciencia fonológica"}`

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins:     config.AnyOrigin(),
		MaxBodyBytes:       config.DefaultMaxBodyBytes,
		ShutdownTimeoutSec: 1,
		Port:               config.DefaultPort,
	}
}

// newTestServer wires a real Generator around client. A nil client means no credential.
func newTestServer(t *testing.T, client llm.LLMClient, cfg *config.Config) (*Server, *prometheus.Registry) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	gen, err := plan.NewGenerator(client, nil, nil)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	return NewServer(gen, cfg, reg), reg
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func assertMessage(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"message":"`+msg+`"}`, w.Body.String())
}

func TestRoot(t *testing.T) {
	s, _ := newTestServer(t, llm.NewMockClient("{}"), nil)

	w := do(t, s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, msgOnline, w.Body.String())

	w = do(t, s, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		w = do(t, s, method, "/", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, method)
	}
}

func TestGeneratePlanSuccess(t *testing.T) {
	mock := llm.NewMockClient(`{"plan":[]}`)
	s, _ := newTestServer(t, mock, nil)

	w := do(t, s, http.MethodPost, "/generate-plan", exampleBody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"plan":[]}`, w.Body.String())

	require.Equal(t, 1, mock.Calls())
	prompt := mock.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "6 años")
	assert.Contains(t, prompt, "4")
	assert.Contains(t, prompt, "conciencia fonológica")
}

func TestGeneratePlanMissingFields(t *testing.T) {
	mock := llm.NewMockClient(`{"plan":[]}`)
	s, _ := newTestServer(t, mock, nil)

	for _, body := range []string{
		`{"sessions":4,"objective":"rimas"}`,
		`{"age":6,"objective":"rimas"}`,
		`{"age":6,"sessions":4}`,
		`{"age":"","sessions":4,"objective":"rimas"}`,
		`{"age":6,"sessions":null,"objective":"rimas"}`,
		`{"age":6,"sessions":0,"objective":"rimas"}`,
		`{"age":6,"sessions":4,"objective":""}`,
		`{}`,
		`null`,
		`no es json`,
		`["age"]`,
		``,
	} {
		w := do(t, s, http.MethodPost, "/generate-plan", body, nil)
		assertMessage(t, w, http.StatusBadRequest, msgIncomplete)
	}
	assert.Zero(t, mock.Calls(), "upstream must never be called for incomplete requests")
}

func TestGeneratePlanWithoutCredential(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	for _, body := range []string{exampleBody, `{}`} {
		w := do(t, s, http.MethodPost, "/generate-plan", body, nil)
		assertMessage(t, w, http.StatusInternalServerError, msgConfiguration)
	}
}

func TestGeneratePlanUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		respond func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error)
	}{
		{"not json", func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "Aquí tienes tu plan: ..."}, nil
		}},
		{"truncated json", func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: `{"plan":[`}, nil
		}},
		{"quota", func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, 429, "quota")
		}},
		{"bad key", func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, 403, "API key not valid")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockClient("")
			mock.Respond = tt.respond
			s, _ := newTestServer(t, mock, nil)

			w := do(t, s, http.MethodPost, "/generate-plan", exampleBody, nil)
			assertMessage(t, w, http.StatusInternalServerError, msgInternal)
			assert.NotContains(t, w.Body.String(), "quota")
			assert.Equal(t, 1, mock.Calls())
		})
	}
}

func TestGeneratePlanBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 64
	mock := llm.NewMockClient("{}")
	s, _ := newTestServer(t, mock, cfg)

	body := fmt.Sprintf(`{"age":6,"sessions":4,"objective":%q}`, strings.Repeat("a", 200))
	w := do(t, s, http.MethodPost, "/generate-plan", body, nil)
	assertMessage(t, w, http.StatusRequestEntityTooLarge, msgTooLarge)
	assert.Zero(t, mock.Calls())
}

func TestGeneratePlanMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, llm.NewMockClient("{}"), nil)

	w := do(t, s, http.MethodGet, "/generate-plan", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	mock := llm.NewMockClient("")
	mock.Respond = func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		prompt := req.Messages[0].Content
		start := strings.Index(prompt, "tema-")
		end := start + strings.IndexByte(prompt[start:], '\n')
		return llm.CompletionResponse{Content: fmt.Sprintf(`{"objetivo":%q}`, prompt[start:end])}, nil
	}
	s, _ := newTestServer(t, mock, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	const n = 20
	var wg sync.WaitGroup
	bodies := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf(`{"age":6,"sessions":4,"objective":"tema-%d"}`, i)
			resp, err := http.Post(srv.URL+"/generate-plan", "application/json", strings.NewReader(payload))
			if err != nil {
				return
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)
			bodies[i] = string(raw)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf(`{"objetivo":"tema-%d"}`, i), bodies[i])
	}
}

func TestCORSAnyOrigin(t *testing.T) {
	s, _ := newTestServer(t, llm.NewMockClient(`{"plan":[]}`), nil)

	w := do(t, s, http.MethodPost, "/generate-plan", exampleBody, map[string]string{"Origin": "https://cualquiera.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = config.NewOrigins("https://playbooklectoescritura.netlify.app")
	mock := llm.NewMockClient(`{"plan":[]}`)
	s, _ := newTestServer(t, mock, cfg)

	allowed := map[string]string{"Origin": "https://playbooklectoescritura.netlify.app"}
	w := do(t, s, http.MethodPost, "/generate-plan", exampleBody, allowed)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://playbooklectoescritura.netlify.app", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, s, http.MethodPost, "/generate-plan", exampleBody, map[string]string{"Origin": "https://evil.example"})
	assertMessage(t, w, http.StatusForbidden, msgOriginRejected)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, mock.Calls())

	// No Origin header: server-to-server callers pass.
	w = do(t, s, http.MethodPost, "/generate-plan", exampleBody, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = config.NewOrigins("https://playbooklectoescritura.netlify.app")
	s, _ := newTestServer(t, llm.NewMockClient("{}"), cfg)

	w := do(t, s, http.MethodOptions, "/generate-plan", "", map[string]string{
		"Origin":                         "https://playbooklectoescritura.netlify.app",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "content-type",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://playbooklectoescritura.netlify.app", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, llm.NewMockClient("{}"), nil)

	w := do(t, s, http.MethodGet, "/", "", map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = do(t, s, http.MethodGet, "/", "", nil)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	w = do(t, s, http.MethodPost, "/generate-plan", `{}`, map[string]string{HeaderRequestID: strings.Repeat("x", 500)})
	assert.Len(t, w.Header().Get(HeaderRequestID), 36, "oversized inbound IDs are replaced")
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	w := do(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Version)
	assert.False(t, body.UpstreamConfigured)
}

func TestHTTPMetrics(t *testing.T) {
	s, reg := newTestServer(t, llm.NewMockClient(`{"plan":[]}`), nil)

	do(t, s, http.MethodPost, "/generate-plan", exampleBody, nil)
	do(t, s, http.MethodPost, "/generate-plan", `{}`, nil)
	do(t, s, http.MethodGet, "/missing", "", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.requests.WithLabelValues("POST /generate-plan", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.requests.WithLabelValues("POST /generate-plan", "400")), 0)

	w := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "planrelay_http_requests_total")

	count, err := testutil.GatherAndCount(reg, "planrelay_http_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 3)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, llm.NewMockClient("{}"), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
