package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/ingestion"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/plugin"
	"github.com/54b3r/acrecall/internal/rag"
)

// ---------------------------------------------------------------------------
// Fake recaller
// ---------------------------------------------------------------------------

// fakeRecaller implements recaller with canned results and records the
// arguments it was called with.
type fakeRecaller struct {
	results  []rag.SearchResult
	degraded bool
	err      error

	gotOpts  int
	reranked bool
	added    []rag.Record
	records  []rag.Record
	progress []string
	waitMs   int
}

func (f *fakeRecaller) Search(_ context.Context, _ string, opts ...rag.SearchOption) (*rag.Retrieval, error) {
	f.gotOpts = len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return &rag.Retrieval{Results: f.results, Degraded: f.degraded}, nil
}

func (f *fakeRecaller) Rerank(query string, results []rag.SearchResult) []rag.SearchResult {
	f.reranked = true
	return rag.RerankWith(query, results, rag.RerankBoost)
}

func (f *fakeRecaller) AddRecord(_ context.Context, rec rag.Record) (rag.Record, error) {
	if f.err != nil {
		return rag.Record{}, f.err
	}
	if rec.Metadata.Type == "" {
		rec.Metadata.Type = rag.TypeAC
	}
	rec.Embedding = []float32{0.1, 0.2}
	f.added = append(f.added, rec)
	return rec, nil
}

func (f *fakeRecaller) Records(context.Context) ([]rag.Record, error) { return f.records, f.err }

func (f *fakeRecaller) Stats(context.Context) (*plugin.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plugin.Stats{Records: len(f.records), Dimensions: 2,
		Storage: plugin.ProviderStatus{Name: "memory", Available: true}}, nil
}

func (f *fakeRecaller) Index(_ context.Context, _ string, progress func(string)) (ingestion.Report, error) {
	if f.err != nil {
		return ingestion.Report{}, f.err
	}
	for _, p := range f.progress {
		progress(p)
	}
	return ingestion.Report{Files: 1, Extracted: 2, Indexed: 2}, nil
}

func (f *fakeRecaller) GenerateTest(_ context.Context, ac, _ string) (*plugin.GeneratedTest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plugin.GeneratedTest{Code: "test('" + ac + "')", Template: plugin.TemplateDefault}, nil
}

func (f *fakeRecaller) AnalyzeFailure(context.Context, string) (*plugin.FailureAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plugin.FailureAnalysis{Cause: "timeout", Retry: true, WaitMs: 2000}, nil
}

func (f *fakeRecaller) EstimateWaitTime(context.Context, string) (int, error) { return f.waitMs, f.err }

func (f *fakeRecaller) GenerateTraceMatrix(_ context.Context, tests []plugin.TestCase) (*plugin.TraceMatrix, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := &plugin.TraceMatrix{Coverage: 1}
	for _, tc := range tests {
		m.Rows = append(m.Rows, plugin.TraceRow{Test: tc.Name})
	}
	return m, nil
}

// newTestServer builds a fully wired Server around r with an isolated
// metrics registry.
func newTestServer(r recaller, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	cfg.Logger = logging.Discard()
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	s := newServer(r, cfg)
	// Stop the limiter's eviction goroutine; the limiter itself keeps working.
	s.stopRL()
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

var loginRecord = rag.Record{
	ID:         "auth.md-ac-1",
	Text:       "User can log in with email and password",
	SourceFile: "auth.md",
	Embedding:  []float32{1, 0},
	Metadata:   rag.Metadata{Type: rag.TypeAC},
}

// ---------------------------------------------------------------------------
// POST /api/search
// ---------------------------------------------------------------------------

func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	f := &fakeRecaller{results: []rag.SearchResult{{Record: loginRecord, Score: 0.91}}}
	s := newTestServer(f, nil)

	w := do(t, s, http.MethodPost, "/api/search", `{"query":"login","topK":3,"threshold":0.5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp searchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "auth.md-ac-1", resp.Results[0].ID)
	assert.Equal(t, rag.TypeAC, resp.Results[0].Type)
	assert.InDelta(t, 0.91, resp.Results[0].Score, 1e-9)
	assert.False(t, resp.Degraded)
	assert.NotContains(t, w.Body.String(), "embedding", "vectors must not be serialised")

	assert.Equal(t, 2, f.gotOpts, "topK and threshold overrides are forwarded")
	assert.False(t, f.reranked)
}

func TestHandleSearch_Rerank(t *testing.T) {
	t.Parallel()

	other := loginRecord
	other.ID, other.Text = "cart.md-ac-1", "Cart shows the order total"
	f := &fakeRecaller{results: []rag.SearchResult{
		{Record: other, Score: 0.80},
		{Record: loginRecord, Score: 0.79},
	}}
	s := newTestServer(f, nil)

	w := do(t, s, http.MethodPost, "/api/search", `{"query":"log in with password","rerank":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp searchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, f.reranked)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "auth.md-ac-1", resp.Results[0].ID)
	assert.Positive(t, resp.Results[0].Boost)
}

func TestHandleSearch_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecaller{}, nil)
	for _, body := range []string{`{"query":"   "}`, `not json`} {
		w := do(t, s, http.MethodPost, "/api/search", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestHandleSearch_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"disabled", fmt.Errorf("plugin: search: %w", errs.ErrDisabled), http.StatusServiceUnavailable},
		{"not initialized", fmt.Errorf("plugin: search: %w", errs.ErrNotInitialized), http.StatusServiceUnavailable},
		{"unsupported", errs.New(errs.CodeBackendUnsupported, "no"), http.StatusNotImplemented},
		{"invalid", errs.New(errs.CodeRequestInvalid, "bad"), http.StatusBadRequest},
		{"timeout", fmt.Errorf("embed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(&fakeRecaller{err: tt.err}, nil)
			w := do(t, s, http.MethodPost, "/api/search", `{"query":"login"}`)
			assert.Equal(t, tt.want, w.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, string(errs.CodeOf(tt.err)), resp.Code)
		})
	}
}

// ---------------------------------------------------------------------------
// /api/records and /api/stats
// ---------------------------------------------------------------------------

func TestHandleRecords_AddAndList(t *testing.T) {
	t.Parallel()

	test := loginRecord
	test.ID, test.Metadata.Type = "login.spec.ts", rag.TypeTest
	f := &fakeRecaller{records: []rag.Record{loginRecord, test}}
	s := newTestServer(f, nil)

	w := do(t, s, http.MethodPost, "/api/records", `{"id":"r1","text":"Cart keeps items","sourceFile":"cart.md"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created recordResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "r1", created.ID)
	assert.Equal(t, rag.TypeAC, created.Metadata.Type)
	assert.Equal(t, 2, created.Dimensions)
	assert.True(t, created.Embedded)
	require.Len(t, f.added, 1)

	w = do(t, s, http.MethodGet, "/api/records?type=test", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []recordResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "login.spec.ts", listed[0].ID)
}

func TestHandleStats(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecaller{records: []rag.Record{loginRecord}}, nil)
	w := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var st plugin.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, 1, st.Records)
	assert.Equal(t, "memory", st.Storage.Name)
}

// ---------------------------------------------------------------------------
// POST /api/index (SSE)
// ---------------------------------------------------------------------------

func TestHandleIndex_StreamsProgress(t *testing.T) {
	t.Parallel()

	f := &fakeRecaller{progress: []string{"indexed auth.md (2)"}}
	s := newTestServer(f, nil)

	w := do(t, s, http.MethodPost, "/api/index", `{"dir":"./requirements"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	var events []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"progress", "report", "done"}, events)
	assert.Contains(t, body, "data: indexed auth.md (2)")
	assert.Contains(t, body, `"indexed":2`)
}

func TestHandleIndex_ErrorEvent(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecaller{err: errs.ErrDisabled}, nil)
	w := do(t, s, http.MethodPost, "/api/index", `{}`)
	body := w.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "event: done")
}

// ---------------------------------------------------------------------------
// Generation-backed routes
// ---------------------------------------------------------------------------

func TestGenerationRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecaller{waitMs: 3000}, nil)

	w := do(t, s, http.MethodPost, "/api/generate", `{"ac":"User can log in"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var gen plugin.GeneratedTest
	require.NoError(t, json.NewDecoder(w.Body).Decode(&gen))
	assert.Equal(t, "test('User can log in')", gen.Code)

	w = do(t, s, http.MethodPost, "/api/analyze", `{"log":"ERROR timeout waiting for #submit"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var fa plugin.FailureAnalysis
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fa))
	assert.True(t, fa.Retry)

	w = do(t, s, http.MethodPost, "/api/wait", `{"selector":"#submit"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var wr waitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&wr))
	assert.Equal(t, 3000, wr.WaitMs)

	w = do(t, s, http.MethodPost, "/api/trace", `{"tests":[{"name":"login","code":"..."}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var m plugin.TraceMatrix
	require.NoError(t, json.NewDecoder(w.Body).Decode(&m))
	require.Len(t, m.Rows, 1)
	assert.Equal(t, "login", m.Rows[0].Test)
}

func TestGenerationRoutes_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecaller{}, nil)
	for path, body := range map[string]string{
		"/api/generate": `{"ac":""}`,
		"/api/analyze":  `{"log":" "}`,
		"/api/wait":     `{}`,
	} {
		w := do(t, s, http.MethodPost, path, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
