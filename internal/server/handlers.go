package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/pkg/errors"
)

// handleSearch serves GET /api/search?q=&platform=&page=&per_page=.
// Validation-level problems come back as 200 with success:false; only store
// failures produce a non-2xx status. Callers distinguish by the success field.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req := &models.SearchRequest{
		Query:    r.URL.Query().Get("q"),
		Platform: r.URL.Query().Get("platform"),
	}
	var err error
	if req.Page, err = queryInt(r, "page", 1); err != nil {
		s.respondFailure(w, http.StatusOK, "page must be an integer")
		return
	}
	if req.PerPage, err = queryInt(r, "per_page", 0); err != nil {
		s.respondFailure(w, http.StatusOK, "per_page must be an integer")
		return
	}

	s.logger.Debug("search request", zap.String("query", req.Query), zap.String("platform", req.Platform))
	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, searchEnvelope{
		Success:        true,
		SearchResponse: resp,
	})
}

type searchEnvelope struct {
	Success bool `json:"success"`
	*models.SearchResponse
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.aggregator.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// handleSyncStatus serves GET /api/sync/status: the most recent run per platform.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.LatestSyncRuns(r.Context())
	if err != nil {
		s.logger.Error("sync status failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"sync_status": runs,
	})
}

// handleSync serves POST /api/sync: one cycle per configured platform.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	runs := s.coordinator.SyncAll(r.Context())
	synced := map[string]int{}
	for _, run := range runs {
		synced[run.Platform] = run.MessagesCount
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"synced":  synced,
		"runs":    runs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondAppError maps the error taxonomy onto the wire contract: validation
// problems are 200 + success:false, retryable store/client failures are 5xx.
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	switch errors.CodeOf(err) {
	case errors.CodeValidation:
		s.respondFailure(w, http.StatusOK, err.Error())
	case errors.CodeStoreUnavailable:
		s.respondFailure(w, http.StatusServiceUnavailable, err.Error())
	case errors.CodeSyncInProgress:
		s.respondFailure(w, http.StatusConflict, err.Error())
	default:
		s.respondFailure(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondFailure(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
