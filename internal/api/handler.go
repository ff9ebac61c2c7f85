package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/guard"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	guards  *guard.Engine
	scorer  *scoring.Scorer
	version string

	// asyncAudit skips the synchronous score write; the worker persists
	// scores from the computed topic instead.
	asyncAudit bool
	scoreTTL   time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, guards *guard.Engine, scorer *scoring.Scorer, version string, asyncAudit bool, scoreTTL time.Duration) *Handler {
	if scoreTTL <= 0 {
		scoreTTL = 10 * time.Minute
	}
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		guards:     guards,
		scorer:     scorer,
		version:    version,
		asyncAudit: asyncAudit,
		scoreTTL:   scoreTTL,
	}
}

// Score handles POST /score requests. The body is a flat JSON object keyed
// by the raw field names; every field is required.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var fields map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	record, err := domain.RecordFromMap(fields)
	if err != nil {
		var missing *domain.MissingFieldError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": missing.Error(),
				"field": missing.Field,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Identical records score identically, so serve repeats from cache.
	recordHash := scoring.RecordHash(record)
	if h.cache != nil {
		cached, err := h.cache.GetScore(ctx, tenantID, recordHash)
		if err != nil {
			slog.Warn("score cache read failed", "error", err)
		} else if cached != nil {
			cached.Metadata.CacheHit = true
			cached.Metadata.TraceID = traceID
			cached.Metadata.TotalMs = time.Since(start).Milliseconds()
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	// Advisory input guards. Triggered guards become warnings on the
	// response; they never change the probabilities or the decision.
	guardsStart := time.Now()
	var warnings []domain.GuardResult
	if h.guards != nil {
		warnings = h.guards.EvaluateAll(ctx, record)
	}
	guardsMs := time.Since(guardsStart).Milliseconds()

	scoreStart := time.Now()
	score, err := h.scorer.Score(record)
	if err != nil {
		slog.Error("scoring failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}
	scoreMs := time.Since(scoreStart).Milliseconds()

	score.ID = uuid.New().String()
	score.TenantID = tenantID
	score.Warnings = warnings
	score.Metadata = domain.ScoreMetadata{
		TraceID:      traceID,
		ScoreMs:      scoreMs,
		GuardsMs:     guardsMs,
		ModelVersion: h.modelVersion(),
	}

	// Synchronous audit write unless the async worker owns persistence.
	if h.repo != nil && !h.asyncAudit {
		if err := h.repo.SaveScore(ctx, tenantID, score); err != nil {
			slog.Error("failed to save score", "score_id", score.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, err := json.Marshal(score)
		if err != nil {
			slog.Error("failed to encode score event", "score_id", score.ID, "error", err)
		} else {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicScoreComputed, payload); err != nil {
				slog.Error("failed to publish score", "score_id", score.ID, "error", err)
			}
			if score.Fraud {
				if err := h.bus.Publish(ctx, tenantID, domain.TopicScoreAlert, payload); err != nil {
					slog.Error("failed to publish alert", "score_id", score.ID, "error", err)
				}
			}
		}
	}

	if h.cache != nil {
		if err := h.cache.SetScore(ctx, tenantID, recordHash, score, h.scoreTTL); err != nil {
			slog.Warn("score cache write failed", "error", err)
		}
	}

	score.Metadata.TotalMs = time.Since(start).Milliseconds()

	slog.Info("record scored",
		"score_id", score.ID,
		"tenant_id", tenantID,
		"p_fraud", score.PFraud,
		"risk_tier", score.Tier,
		"warnings", len(warnings),
		"duration_ms", score.Metadata.TotalMs,
	)

	writeJSON(w, http.StatusOK, score)
}

// GetScore retrieves a score by ID.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	scoreID := chi.URLParam(r, "id")

	if scoreID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "score id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	score, err := h.repo.GetScore(ctx, tenantID, scoreID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get score", "id", scoreID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "score not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// ListScores retrieves recent scores for the tenant.
// Query params: since (RFC3339, default 24h ago), limit (default 100).
func (h *Handler) ListScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	scores, err := h.repo.ListScores(ctx, tenantID, since, limit)
	if err != nil {
		slog.Error("failed to list scores", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list scores",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores": scores,
		"count":  len(scores),
	})
}

// ModelInfoResponse is the response for GET /model.
type ModelInfoResponse struct {
	ModelVersion string                 `json:"modelVersion"`
	Features     []string               `json:"features"`
	Importances  []domain.FeatureWeight `json:"importances"`
	Thresholds   map[string]float64     `json:"thresholds"`
	TrainingRun  *domain.TrainingRun    `json:"trainingRun,omitempty"`
}

// ModelInfo returns the loaded model's feature order, importance ranking,
// decision thresholds, and the latest training run when one is recorded.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	resp := ModelInfoResponse{
		ModelVersion: h.modelVersion(),
		Features:     h.scorer.FeatureNames(),
		Importances:  h.scorer.Importances(),
		Thresholds: map[string]float64{
			"decision": domain.DecisionThreshold,
			"moderate": domain.TierModerateCutoff,
			"high":     domain.TierHighCutoff,
			"critical": domain.TierCriticalCutoff,
		},
	}

	if h.repo != nil {
		run, err := h.repo.LatestTrainingRun(r.Context())
		if err == nil {
			resp.TrainingRun = run
		} else if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to load latest training run", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GlobalTenantID is used for guards that apply to all tenants.
const GlobalTenantID = "*"

// ListGuards returns all loaded guards from the engine.
func (h *Handler) ListGuards(w http.ResponseWriter, r *http.Request) {
	loaded := h.guards.GetLoadedGuards()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"guards": loaded,
		"count":  len(loaded),
	})
}

// CreateGuardRequest is the request body for creating a guard.
type CreateGuardRequest struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Expression  string               `json:"expression"`
	Severity    domain.GuardSeverity `json:"severity"`
	Reason      string               `json:"reason,omitempty"`
	Enabled     bool                 `json:"enabled"`
}

// CreateGuard creates a new guard and saves it to the database.
// Guards are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /guards/reload to hot-reload into the engine.
func (h *Handler) CreateGuard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateGuardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityWarn
	}

	cfg := &domain.GuardConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Severity:    severity,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if err := h.guards.ValidateGuard(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveGuardConfig(ctx, GlobalTenantID, cfg); err != nil {
			slog.Error("failed to save guard config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save guard",
			})
			return
		}
	}

	slog.Info("guard created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"guard":   cfg,
		"message": "Guard created. Call POST /guards/reload to apply changes.",
	})
}

// ReloadGuards reloads all guards from the database into the engine.
// This enables hot-reloading without server restart. When the database
// holds no guards, the built-in set is restored.
func (h *Handler) ReloadGuards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbGuards, err := h.repo.ListGuardConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list guards from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load guards from database",
		})
		return
	}

	source := "database"
	if len(dbGuards) == 0 {
		dbGuards = guard.DefaultGuards()
		source = "builtin"
	}

	if err := h.guards.ReloadGuards(dbGuards); err != nil {
		slog.Error("failed to reload guards into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload guards: " + err.Error(),
		})
		return
	}

	slog.Info("guards reloaded", "count", len(dbGuards), "source", source)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "guards reloaded successfully",
		"count":   len(dbGuards),
		"source":  source,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
// The server refuses to start without loaded artifacts, so a live
// scorer implies readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// modelVersion reports the loaded artifact set's version, falling back to
// the compiled-in version for pre-manifest artifact triples.
func (h *Handler) modelVersion() string {
	if m := h.scorer.Manifest(); m != nil && m.ModelVersion != "" {
		return m.ModelVersion
	}
	return model.ModelVersion
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
