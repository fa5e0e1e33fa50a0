package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/case-study-search/internal/config"
	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
	"github.com/kirillkom/case-study-search/internal/observability/metrics"
)

const (
	serviceName   = "api"
	queryEndpoint = "/v1/query"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Services are the inbound ports served over HTTP. Chunks, Health and
// Metrics are optional.
type Services struct {
	Answerer ports.QuestionAnswerer
	Resolver ports.CaseStudyResolver
	Indexes  ports.IndexManager
	Chunks   ports.ChunkEnqueuer
	Health   HealthCheck
	Metrics  *metrics.HTTPServerMetrics
}

type Router struct {
	cfg    config.Config
	svc    Services
	logger *slog.Logger
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{
		cfg:    cfg,
		svc:    svc,
		logger: slog.Default(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/query", rt.query)
	mux.HandleFunc("GET /v1/case-studies/resolve", rt.resolve)
	mux.HandleFunc("POST /v1/admin/indexes", rt.ensureIndexes)
	mux.HandleFunc("POST /v1/chunks", rt.enqueueChunks)
	if rt.svc.Metrics != nil {
		mux.Handle("GET /metrics", rt.svc.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.svc.Metrics != nil {
		handler = rt.svc.Metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Health != nil {
		if err := rt.svc.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := rt.decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}

	start := time.Now()
	answer, err := rt.svc.Answerer.Ask(r.Context(), req.Question)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.svc.Metrics != nil {
		webFailed := answer.Outcome == domain.OutcomeFallback && answer.Text == domain.WebUnavailableAnswer
		rt.svc.Metrics.RecordAnswer(serviceName, queryEndpoint, string(answer.Outcome), len(answer.Evidence), answer.BestScore, webFailed, time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) resolve(w http.ResponseWriter, r *http.Request) {
	caseID := r.URL.Query().Get("case_id")
	chunkID := r.URL.Query().Get("chunk_id")

	doc, err := rt.svc.Resolver.Resolve(r.Context(), caseID, chunkID)
	if rt.svc.Metrics != nil {
		rt.svc.Metrics.RecordResolve(serviceName, doc != nil, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if doc == nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrCaseStudyNotFound, "resolve",
			fmt.Errorf("case_id=%q chunk_id=%q", caseID, chunkID)))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) ensureIndexes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dimension int `json:"dimension"`
	}
	if r.ContentLength != 0 {
		if err := rt.decodeBody(w, r, &req); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	if req.Dimension == 0 {
		req.Dimension = rt.cfg.EmbedDim
	}

	if err := rt.svc.Indexes.EnsureIndexes(r.Context(), req.Dimension); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dimension": req.Dimension})
}

// enqueueChunks accepts a single record, a JSON array of records or an
// object with a "records" array. The whole batch is validated before any
// record is published; a publish failure reports how many went out.
func (rt *Router) enqueueChunks(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Chunks == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":      "chunk queue is not configured",
			"request_id": requestIDFromContext(r.Context()),
		})
		return
	}

	var raw json.RawMessage
	if err := rt.decodeBody(w, r, &raw); err != nil {
		rt.writeError(w, r, err)
		return
	}
	records, err := parseChunkPayload(raw)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	for i, rec := range records {
		if err := rec.Validate(rt.cfg.EmbedDim); err != nil {
			rt.writeError(w, r, fmt.Errorf("record %d (chunk %q): %w", i, rec.ChunkID, err))
			return
		}
	}

	for i, rec := range records {
		if err := rt.svc.Chunks.Enqueue(r.Context(), rec); err != nil {
			rt.writeBatchError(w, r, fmt.Errorf("record %d (chunk %q): %w", i, rec.ChunkID, err), i)
			return
		}
		if rt.svc.Metrics != nil {
			rt.svc.Metrics.RecordChunkEnqueued(serviceName)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(records)})
}

func parseChunkPayload(raw json.RawMessage) ([]domain.ChunkRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse chunks", errors.New("empty body"))
	}

	var records []domain.ChunkRecord
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse chunks", err)
		}
	case '{':
		var batch struct {
			Records []domain.ChunkRecord `json:"records"`
		}
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse chunks", err)
		}
		if batch.Records != nil {
			records = batch.Records
			break
		}
		var rec domain.ChunkRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse chunks", err)
		}
		records = []domain.ChunkRecord{rec}
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse chunks", errors.New("expected object or array"))
	}

	if len(records) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse chunks", errors.New("no records"))
	}
	return records, nil
}

func (rt *Router) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := r.Body
	if rt.cfg.APIRequestBodyMaxByte > 0 {
		body = http.MaxBytesReader(w, r.Body, rt.cfg.APIRequestBodyMaxByte)
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("empty body"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode body", err)
	}
	return nil
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
	})
}

// writeBatchError is writeError plus the number of records already
// published, which are not rolled back.
func (rt *Router) writeBatchError(w http.ResponseWriter, r *http.Request, err error, accepted int) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("chunk_batch_partially_published",
			"request_id", requestIDFromContext(r.Context()),
			"accepted", accepted,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]any{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
		"accepted":   accepted,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
