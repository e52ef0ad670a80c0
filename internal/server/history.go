package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/storage"
)

type saveRequest struct {
	UserID    string   `json:"userId"`
	Code      string   `json:"code"`
	Language  string   `json:"language"`
	Inputs    []string `json:"inputs"`
	Timestamp string   `json:"timestamp"`
}

func (s *Server) historyEnabled(w http.ResponseWriter) bool {
	if s.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"success": false, "error": "history is disabled"})
		return false
	}
	return true
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	var req saveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON: " + err.Error()})
		return
	}
	if req.UserID == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Missing fields"})
		return
	}

	e := &storage.Entry{
		ID:       uuid.New().String(),
		UserID:   req.UserID,
		Code:     req.Code,
		Language: req.Language,
		Inputs:   req.Inputs,
	}
	if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
		e.CreatedAt = ts.UTC()
	}
	if err := s.store.SaveEntry(r.Context(), e, nil); err != nil {
		logError("saving history", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to save"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": e})
}

// recordRun saves a traced run to the user's history. Failures are logged;
// the caller still gets its trace.
func (s *Server) recordRun(req runRequest, res *sandbox.ExecResult) {
	if s.store == nil {
		return
	}
	e := &storage.Entry{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Code:      req.Code,
		Inputs:    req.Inputs,
		Outcome:   res.State.String(),
		StepCount: len(res.Trace.Steps),
	}
	if res.Trace.Error != nil {
		e.Error = *res.Trace.Error
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logError("recording run", s.store.SaveEntry(ctx, e, res.Trace))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	opts := storage.ListOptions{}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	entries, err := s.store.ListEntries(r.Context(), chi.URLParam(r, "userID"), opts)
	if err != nil {
		logError("listing history", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	n, err := s.store.ClearUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		logError("clearing history", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to delete history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "History cleared", "deleted": n})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	e, err := s.store.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.entryError(w, err)
		return
	}
	tr, err := s.store.LoadTrace(r.Context(), e.ID)
	if err != nil {
		logError("loading trace", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Server error"})
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(storage.ExportMarkdown(e, tr)))
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"entry": e, "trace": tr}})
	}
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	if err := s.store.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.entryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entryError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "entry not found"})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
}
