// Package httpadapter exposes the answering and ingestion use cases over
// a small JSON API.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/regulait/parecer/internal/config"
	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
	"github.com/regulait/parecer/internal/observability/metrics"
)

type Router struct {
	cfg      config.Config
	answerer ports.QuestionAnswerer
	searcher ports.EvidenceSearcher
	ingestor ports.DocumentIngestor
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	answerer ports.QuestionAnswerer,
	searcher ports.EvidenceSearcher,
	ingestor ports.DocumentIngestor,
	docs ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		answerer: answerer,
		searcher: searcher,
		ingestor: ingestor,
		docs:     docs,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/answer", rt.answerQuestion)
	mux.HandleFunc("/v1/search", rt.searchEvidence)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)

	var handler http.Handler = mux
	if rt.cfg.APIMaxInflight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInflight, rt.backpressureWait())
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rate.Limit(rt.cfg.APIRateLimitRPS), rt.cfg.APIRateLimitBurst)
	}
	if rt.cfg.APIKey != "" {
		handler = apiKeyMiddleware(handler, rt.cfg.APIKey)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) backpressureWait() time.Duration {
	if rt.cfg.APIBackpressureWaitMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerResponse struct {
	Answer    string                   `json:"answer"`
	Evidence  []domain.Evidence        `json:"evidence"`
	Verdict   domain.ValidationVerdict `json:"verdict"`
	Strategy  domain.RetrievalStrategy `json:"strategy"`
	ElapsedMS int64                    `json:"elapsed_ms"`
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question  string `json:"question"`
		K         int    `json:"k"`
		Strategy  string `json:"strategy"`
		UseRerank bool   `json:"use_rerank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	strategy, err := parseOptionalStrategy(req.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := rt.answerer.AnswerQuestion(r.Context(), domain.AnswerRequest{
		Question:  req.Question,
		K:         req.K,
		Strategy:  strategy,
		UseRerank: req.UseRerank,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)

	rt.observeRequest("answer", string(result.Verdict.ConfidenceLabel), result.Verdict.SupportScore,
		len(result.Evidence), result.Verdict.Warnings, elapsed)

	if result.Evidence == nil {
		result.Evidence = []domain.Evidence{}
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Answer:    result.Answer,
		Evidence:  result.Evidence,
		Verdict:   result.Verdict,
		Strategy:  result.Strategy,
		ElapsedMS: elapsed.Milliseconds(),
	})
}

type searchResponse struct {
	Evidence  []domain.Evidence `json:"evidence"`
	Warnings  []string          `json:"warnings"`
	ElapsedMS int64             `json:"elapsed_ms"`
}

func (rt *Router) searchEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		K        int    `json:"k"`
		Strategy string `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	strategy, err := parseOptionalStrategy(req.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	evidence, warnings, err := rt.searcher.SearchEvidence(r.Context(), req.Question, strategy, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)

	rt.observeRequest("search", "", 0, len(evidence), warnings, elapsed)

	if evidence == nil {
		evidence = []domain.Evidence{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Evidence:  evidence,
		Warnings:  warnings,
		ElapsedMS: elapsed.Milliseconds(),
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func parseOptionalStrategy(raw string) (domain.RetrievalStrategy, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return domain.ParseStrategy(raw)
}

func (rt *Router) observeRequest(endpoint, label string, score float64, evidenceCount int, warnings []string, elapsed time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAnswer(endpoint, label, score, evidenceCount, elapsed)
	for _, warning := range warnings {
		rt.metrics.RecordDegradation(endpoint, degradationReason(warning))
	}
}

// degradationReason keys on the branch names embedded in the user-facing
// Portuguese warning text.
func degradationReason(warning string) string {
	switch {
	case strings.Contains(warning, "vetorial"):
		return "vector"
	case strings.Contains(warning, "lexical"):
		return "lexical"
	case strings.Contains(warning, "Reordenação"):
		return "rerank"
	case strings.Contains(warning, "Geração"):
		return "generation"
	case strings.Contains(warning, "evidência"):
		return "no_evidence"
	default:
		return "other"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
