package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/db"
	"github.com/parallaxlabs/deepresearch/internal/metrics"
	"github.com/parallaxlabs/deepresearch/internal/research"
	"github.com/parallaxlabs/deepresearch/internal/session"
	"github.com/parallaxlabs/deepresearch/internal/streaming"
)

// Handler exposes the research pipeline over HTTP.
//
// Endpoints:
//
//	POST /research          run a research question to completion
//	GET  /research/{id}     latest checkpoint for a session
//	GET  /memory/{user}     list a user's long-term memories
//	GET  /healthz           liveness and dependency health
//	WS   /stream/{id}       live pipeline progress events
type Handler struct {
	pipeline *research.Pipeline
	store    *session.Store
	runs     *db.Client
	streams  *streaming.Manager
	logger   *zap.Logger
}

// NewHandler constructs the API handler. The db client may be nil when
// run persistence is disabled.
func NewHandler(pipeline *research.Pipeline, store *session.Store, runs *db.Client, streams *streaming.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		store:    store,
		runs:     runs,
		streams:  streams,
		logger:   logger,
	}
}

// RegisterRoutes registers all endpoints on the mux. The auth middleware
// is applied to research and memory routes, not to health.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth Middleware) {
	mux.Handle("POST /research", auth(http.HandlerFunc(h.handleResearch)))
	mux.Handle("GET /research/{id}", auth(http.HandlerFunc(h.handleGetSession)))
	mux.Handle("GET /memory/{user}", auth(http.HandlerFunc(h.handleListMemories)))
	mux.Handle("GET /stream/{id}", auth(http.HandlerFunc(h.handleStream)))
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// ResearchRequest is the POST /research payload.
type ResearchRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// ResearchResponse is the POST /research reply.
type ResearchResponse struct {
	RunID         string   `json:"run_id"`
	SessionID     string   `json:"session_id"`
	FinalAnswer   string   `json:"final_answer"`
	Canonical     string   `json:"canonical_answer"`
	Sources       []string `json:"sources"`
	MissingClaims []string `json:"missing_claims,omitempty"`
	RetryCount    int      `json:"retry_count"`
	DurationMS    int64    `json:"duration_ms"`
}

func (h *Handler) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
		metrics.SessionsCreated.Inc()
	}

	st := &research.State{
		SessionID: sessionID,
		UserID:    req.UserID,
		Question:  req.Question,
	}

	start := time.Now()
	final, err := h.pipeline.Run(r.Context(), st)
	if err != nil {
		h.logger.Error("Pipeline run failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "research run failed")
		return
	}
	elapsed := time.Since(start)

	runID := uuid.New().String()
	h.persistRun(r, runID, sessionID, req.UserID, final, elapsed)

	resp := ResearchResponse{
		RunID:         runID,
		SessionID:     sessionID,
		FinalAnswer:   final.FinalAnswer,
		Canonical:     final.FinalAnswerCanonical,
		Sources:       sourceURLs(final),
		MissingClaims: final.MissingClaims,
		RetryCount:    final.RetryCount,
		DurationMS:    elapsed.Milliseconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// persistRun saves the checkpoint, run record, and user memory. All
// persistence is best-effort; failures are logged, not returned.
func (h *Handler) persistRun(r *http.Request, runID, sessionID, userID string, final *research.State, elapsed time.Duration) {
	ctx := r.Context()

	if err := h.store.SaveCheckpoint(ctx, sessionID, userID, final); err != nil {
		h.logger.Warn("Checkpoint save failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	if userID != "" {
		mem := map[string]interface{}{
			"question": final.Question,
			"answer":   final.FinalAnswerCanonical,
			"run_id":   runID,
		}
		if err := h.store.AppendMemory(ctx, userID, mem); err != nil {
			h.logger.Warn("Memory append failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if h.runs == nil {
		return
	}
	missing, _ := json.Marshal(final.MissingClaims)
	sources, _ := json.Marshal(sourceURLs(final))
	run := &db.ResearchRun{
		ID:              runID,
		SessionID:       sessionID,
		UserID:          userID,
		Question:        final.Question,
		FinalAnswer:     final.FinalAnswer,
		CanonicalAnswer: final.FinalAnswerCanonical,
		ClaimCount:      len(final.Claims),
		DocumentCount:   len(final.Documents),
		RetryCount:      final.RetryCount,
		MissingClaims:   missing,
		Sources:         sources,
		DurationMS:      elapsed.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.runs.SaveRun(ctx, run); err != nil {
		h.logger.Warn("Run persistence failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// handleGetSession serves the latest checkpoint for a session. When the
// checkpoint has expired, the newest persisted run for the session is
// returned instead, if run persistence is enabled.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	cp, err := h.store.GetCheckpoint(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, cp)
		return
	}
	if !errors.Is(err, session.ErrNotFound) {
		h.logger.Warn("Checkpoint lookup failed", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkpoint lookup failed")
		return
	}

	if h.runs != nil {
		runs, err := h.runs.RecentRuns(r.Context(), id, 1)
		if err == nil && len(runs) > 0 {
			writeJSON(w, http.StatusOK, runs[0])
			return
		}
	}
	writeError(w, http.StatusNotFound, "session not found")
}

func (h *Handler) handleListMemories(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}
	entries, err := h.store.ListMemories(r.Context(), userID)
	if err != nil {
		h.logger.Warn("Memory list failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "memory lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"memories": entries,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	checks := map[string]string{}

	if err := h.store.Ping(r.Context()); err != nil {
		checks["redis"] = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		checks["redis"] = "ok"
	}
	if h.runs != nil {
		if err := h.runs.Ping(r.Context()); err != nil {
			checks["postgres"] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// sourceURLs lists the evidence URLs of the final retrieval pass.
func sourceURLs(st *research.State) []string {
	urls := make([]string, 0, len(st.Documents))
	for _, doc := range st.Documents {
		if doc.URL != "" {
			urls = append(urls, doc.URL)
		}
	}
	return urls
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
