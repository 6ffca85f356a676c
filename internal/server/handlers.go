package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

// maxBodyBytes caps JSON request bodies. Failure logs are the largest input.
const maxBodyBytes = 1 << 20

// decode reads a JSON body into v, writing 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: string(errs.CodeRequestInvalid)})
		return false
	}
	return true
}

// writeJSON encodes v with status. Encoding failures are logged only.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps err's code to an HTTP status and writes an errorResponse.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err), slog.String("code", string(errs.CodeOf(err))))
	} else {
		log.Warn("request rejected", slog.Any("error", err), slog.String("code", string(errs.CodeOf(err))))
	}
	writeJSON(w, r, status, errorResponse{Error: err.Error(), Code: string(errs.CodeOf(err))})
}

// statusFor returns the HTTP status for a coded error.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch errs.CodeOf(err) {
	case errs.CodeRequestInvalid, errs.CodeConfigInvalid:
		return http.StatusBadRequest
	case errs.CodeNotInitialized, errs.CodePluginDisabled, errs.CodeStorageUnavailable, errs.CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case errs.CodeBackendUnsupported:
		return http.StatusNotImplemented
	case errs.CodeUpstreamCallFailed, errs.CodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// badRequest writes a 400 with a plain validation message.
func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: msg, Code: string(errs.CodeRequestInvalid)})
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		badRequest(w, r, "query is required")
		return
	}

	var opts []rag.SearchOption
	if req.TopK > 0 {
		opts = append(opts, rag.WithTopK(req.TopK))
	}
	if req.Threshold != nil {
		opts = append(opts, rag.WithThreshold(*req.Threshold))
	}

	ret, err := s.recall.Search(r.Context(), req.Query, opts...)
	if err != nil {
		s.metrics.observeSearch("error", time.Since(start))
		writeError(w, r, err)
		return
	}
	results := ret.Results
	if req.Rerank {
		results = s.recall.Rerank(req.Query, results)
	}

	resp := searchResponse{Results: make([]searchHit, 0, len(results)), Degraded: ret.Degraded}
	for _, res := range results {
		resp.Results = append(resp.Results, searchHit{
			ID:         res.Record.ID,
			Text:       res.Record.Text,
			SourceFile: res.Record.SourceFile,
			Type:       res.Record.Metadata.Type,
			Score:      res.Score,
			Boost:      res.Boost,
		})
	}

	outcome := "ok"
	if ret.Degraded {
		outcome = "degraded"
	}
	s.metrics.observeSearch(outcome, time.Since(start))
	writeJSON(w, r, http.StatusOK, resp)
}

// handleAddRecord handles POST /api/records.
func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := s.recall.AddRecord(r.Context(), rag.Record{
		ID:         req.ID,
		Text:       req.Text,
		SourceFile: req.SourceFile,
		Metadata:   rag.Metadata{Type: req.Type, Author: req.Author},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.recordsAddedTotal.Inc()
	writeJSON(w, r, http.StatusCreated, toRecordResponse(rec))
}

// handleListRecords handles GET /api/records. ?type= filters by record type.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.recall.Records(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	typ := rag.RecordType(r.URL.Query().Get("type"))
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		if typ != "" && rec.Metadata.Type != typ {
			continue
		}
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func toRecordResponse(rec rag.Record) recordResponse {
	embedded := false
	for _, v := range rec.Embedding {
		if v != 0 {
			embedded = true
			break
		}
	}
	return recordResponse{
		ID:         rec.ID,
		Text:       rec.Text,
		SourceFile: rec.SourceFile,
		Metadata:   rec.Metadata,
		Dimensions: len(rec.Embedding),
		Embedded:   embedded,
	}
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.recall.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.storedRecords.Set(float64(st.Records))
	writeJSON(w, r, http.StatusOK, st)
}

// handleIndex handles POST /api/index. Progress lines are streamed as SSE
// "progress" events, followed by a "report" or "error" event and "done".
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !decode(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sw := &sseWriter{w: w, flusher: flusher}
	report, err := s.recall.Index(r.Context(), req.Dir, func(line string) {
		sw.event("progress", line)
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("index failed", slog.Any("error", err))
		sw.event("error", err.Error())
	} else {
		s.metrics.recordsIndexedTotal.Add(float64(report.Indexed))
		b, _ := json.Marshal(report)
		sw.event("report", string(b))
	}
	sw.event("done", "[DONE]")
}

// withTimeout bounds generation-backed requests.
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

// handleGenerate handles POST /api/generate.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.AC) == "" {
		badRequest(w, r, "ac is required")
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	out, err := s.recall.GenerateTest(ctx, req.AC, req.Context)
	if err != nil {
		s.metrics.generations.WithLabelValues("generate", "error").Inc()
		writeError(w, r, err)
		return
	}
	s.metrics.generations.WithLabelValues("generate", outcome(out.Degraded)).Inc()
	writeJSON(w, r, http.StatusOK, out)
}

// handleAnalyze handles POST /api/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Log) == "" {
		badRequest(w, r, "log is required")
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	out, err := s.recall.AnalyzeFailure(ctx, req.Log)
	if err != nil {
		s.metrics.generations.WithLabelValues("analyze", "error").Inc()
		writeError(w, r, err)
		return
	}
	s.metrics.generations.WithLabelValues("analyze", outcome(out.Degraded)).Inc()
	writeJSON(w, r, http.StatusOK, out)
}

// handleWait handles POST /api/wait.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	var req waitRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Selector) == "" {
		badRequest(w, r, "selector is required")
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	ms, err := s.recall.EstimateWaitTime(ctx, req.Selector)
	if err != nil {
		s.metrics.generations.WithLabelValues("wait", "error").Inc()
		writeError(w, r, err)
		return
	}
	s.metrics.generations.WithLabelValues("wait", "ok").Inc()
	writeJSON(w, r, http.StatusOK, waitResponse{Selector: req.Selector, WaitMs: ms})
}

// handleTrace handles POST /api/trace.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	var req traceRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.recall.GenerateTraceMatrix(r.Context(), req.Tests)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func outcome(degraded bool) string {
	if degraded {
		return "degraded"
	}
	return "ok"
}
