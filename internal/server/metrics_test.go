package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/54b3r/acrecall/internal/rag"
)

// findMetric returns the gathered family named name, or nil.
func findMetric(t *testing.T, reg prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// labelValue returns the value of label on m, or "".
func labelValue(m *dto.Metric, label string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == label {
			return lp.GetValue()
		}
	}
	return ""
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s := newTestServer(&fakeRecaller{}, nil)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_SearchOutcomes(t *testing.T) {
	t.Parallel()

	f := &fakeRecaller{degraded: true}
	s := newTestServer(f, nil)
	do(t, s, http.MethodPost, "/api/search", `{"query":"login"}`)
	f.degraded = false
	f.results = []rag.SearchResult{{Record: loginRecord, Score: 0.9}}
	do(t, s, http.MethodPost, "/api/search", `{"query":"login"}`)
	do(t, s, http.MethodPost, "/api/search", `{"query":"login"}`)

	mf := findMetric(t, s.cfg.MetricsGatherer, "acrecall_search_requests_total")
	if mf == nil {
		t.Fatal("acrecall_search_requests_total not found in gathered metrics")
	}
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	if got["ok"] != 2 || got["degraded"] != 1 {
		t.Errorf("want ok=2 degraded=1, got %v", got)
	}
	if findMetric(t, s.cfg.MetricsGatherer, "acrecall_search_duration_seconds") == nil {
		t.Error("acrecall_search_duration_seconds not found")
	}
}

func Test_Metrics_HTTPRequestsLabelledByPattern(t *testing.T) {
	t.Parallel()
	s := newTestServer(&fakeRecaller{}, nil)

	do(t, s, http.MethodGet, "/api/records?type=ac", "")
	do(t, s, http.MethodGet, "/nope", "")

	mf := findMetric(t, s.cfg.MetricsGatherer, "acrecall_http_requests_total")
	if mf == nil {
		t.Fatal("acrecall_http_requests_total not found")
	}
	seen := map[string]string{}
	for _, m := range mf.GetMetric() {
		seen[labelValue(m, labelHandler)] = labelValue(m, "code")
	}
	if seen["GET /api/records"] != "200" {
		t.Errorf("want GET /api/records code 200, got %v", seen)
	}
	if seen["unmatched"] != "404" {
		t.Errorf("want unmatched code 404, got %v", seen)
	}
}

func Test_Metrics_RecordsAdded(t *testing.T) {
	t.Parallel()
	s := newTestServer(&fakeRecaller{}, nil)

	do(t, s, http.MethodPost, "/api/records", `{"id":"a","text":"x","sourceFile":"f"}`)

	mf := findMetric(t, s.cfg.MetricsGatherer, "acrecall_records_added_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Errorf("want acrecall_records_added_total=1, got %v", mf)
	}
}
