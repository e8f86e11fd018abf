package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/velestore/podbor/internal/catalog"
	"github.com/velestore/podbor/internal/corpus"
	"github.com/velestore/podbor/pkg/utils"
	"go.uber.org/zap"
)

// maxDatasetBytes caps the request body for dataset replacement.
const maxDatasetBytes = 32 << 20

type resolveRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		s.respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.logger.Debug("resolve request", zap.String("session_id", req.SessionID), zap.String("text", utils.Truncate(req.Text, 120)))
	result := s.sessions.Turn(r.Context(), req.SessionID, req.Text)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("session reset request", zap.String("session_id", id))
	s.sessions.Reset(r.Context(), id)
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "reset"})
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	limit := s.config.Search.PopularLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	products, err := s.storage.TopProducts(r.Context(), limit)
	if err != nil {
		s.logger.Error("top products failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.storage.EventCounts(r.Context())
	if err != nil {
		s.logger.Error("event counts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"events": counts})
}

func (s *Server) handleFailedQueries(w http.ResponseWriter, r *http.Request) {
	failed, err := s.storage.FailedQueries(r.Context())
	if err != nil {
		s.logger.Error("failed queries lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"queries": failed})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	events, err := s.storage.ListEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("list events failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleGetDataset streams the catalog file as it lives on disk. Item and
// vocabulary counts are served by handleStatus.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.engine.CatalogPath())
	if err != nil {
		s.logger.Error("failed to open dataset file", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to read dataset")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dataset.csv"`)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("dataset download interrupted", zap.Error(err))
	}
}

// handleUpdateDataset replaces the product catalog. The new corpus is built
// first; the file on disk and the serving snapshot change only if the upload
// parses and indexes cleanly.
func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxDatasetBytes)
	rows, err := catalog.ParseReader(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := corpus.Build(rows)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.persistDataset(rows); err != nil {
		s.logger.Error("persist dataset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.engine.Swap(c)
	s.logger.Info("dataset replaced",
		zap.Int("rows", len(rows)),
		zap.Int("items", c.Len()))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "replaced",
		"items":  c.Len(),
	})
}

func (s *Server) persistDataset(rows []catalog.Row) error {
	path := s.engine.CatalogPath()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := catalog.WriteRows(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	opts := s.engine.Options()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":           snap.Len(),
		"vocabulary_size": snap.VocabularySize(),
		"sessions":        s.sessions.Count(),
		"config": map[string]interface{}{
			"threshold":      opts.Threshold,
			"top_n":          opts.TopN,
			"collapse_score": opts.CollapseScore,
			"catalog_path":   s.engine.CatalogPath(),
			"database_path":  s.config.Storage.DatabasePath,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
