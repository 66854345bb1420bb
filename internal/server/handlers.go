package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bitunfold/docquery/internal/coordinator"
)

type queryRequest struct {
	Text string `json:"text"`
}

type insertRequest struct {
	FilePath string `json:"file_path"`
	DocID    string `json:"doc_id,omitempty"`
}

type statusResponse struct {
	Ready          bool  `json:"ready"`
	Chunks         int   `json:"chunks"`
	Documents      int   `json:"documents"`
	DiskUsageBytes int64 `json:"disk_usage_bytes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.coord.Query(r.Context(), req.Text)
	if err != nil {
		s.respondCoordinatorError(w, err, "an error occurred while querying the index")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.coord.Insert(r.Context(), req.FilePath, req.DocID); err != nil {
		s.respondCoordinatorError(w, err, "an error occurred while inserting the document")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "inserted"})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.coord.ListDocuments())
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.coord.GetDocument(id)
	if err != nil {
		s.respondCoordinatorError(w, err, "an error occurred while loading the document")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{
		Ready:          s.coord.Ready(),
		Chunks:         s.coord.ChunkCount(),
		Documents:      s.coord.DocumentCount(),
		DiskUsageBytes: s.coord.DiskUsageBytes(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondCoordinatorError maps coordinator sentinels to HTTP statuses.
// Internal failures keep their generic message; details stay in the logs.
func (s *Server) respondCoordinatorError(w http.ResponseWriter, err error, generic string) {
	switch {
	case errors.Is(err, coordinator.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coordinator.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, coordinator.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, generic)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
