package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/michaelbrown/decipher/internal/algorithms"
	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/trace"
)

// maxBody bounds request bodies. Source size is policed separately by the
// sandbox policy.
const maxBody = 1 << 20

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"explain": s.explainer.Enabled(),
		"history": s.store != nil,
		"running": s.runs.Len(),
	})
}

// --- Tracing ---

type runRequest struct {
	Code      string   `json:"code"`
	Inputs    []string `json:"inputs"`
	TimeoutMS int      `json:"timeout_ms,omitempty"`
	Seed      int64    `json:"seed,omitempty"`
	UserID    string   `json:"user_id,omitempty"` // saves the run to history when set
}

type visualizeResponse struct {
	*trace.Trace
	VariableMap map[string]string `json:"variable_map"`
}

// execute runs req in the sandbox under a run slot. onStep may be nil.
func (s *Server) execute(ctx context.Context, req runRequest, onStep func(trace.Step)) (*sandbox.ExecResult, int, error) {
	ar, ctx, err := s.runs.Start(ctx)
	if err != nil {
		return nil, http.StatusServiceUnavailable, err
	}
	defer s.runs.Remove(ar.ID)

	res, err := s.sandbox.Exec(ctx, sandbox.ExecOpts{
		Source:  req.Code,
		Inputs:  req.Inputs,
		Timeout: time.Duration(req.TimeoutMS) * time.Millisecond,
		Seed:    req.Seed,
		OnStep:  onStep,
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrRejected) {
			return nil, http.StatusBadRequest, err
		}
		return nil, http.StatusInternalServerError, err
	}
	if req.UserID != "" {
		s.recordRun(req, res)
	}
	return res, http.StatusOK, nil
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, status, err := s.execute(r.Context(), req, nil)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	variableMap := map[string]string{}
	if last := res.Trace.Last(); last != nil && len(last.Variables) > 0 {
		names := make([]string, 0, len(last.Variables))
		for name := range last.Variables {
			names = append(names, name)
		}
		sort.Strings(names)
		variableMap = s.explainer.VariableMap(r.Context(), req.Code, names)
	}

	writeJSON(w, http.StatusOK, visualizeResponse{Trace: res.Trace, VariableMap: variableMap})
}

func (s *Server) handleDebugTrace(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, status, err := s.execute(r.Context(), req, nil)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trace":           res.Trace,
		"state":           res.State.String(),
		"duration_ms":     res.Duration.Milliseconds(),
		"exit_code":       res.ExitCode,
		"stderr":          res.Stderr,
		"degradations":    res.Degradations,
		"inputs_consumed": res.InputsConsumed,
	})
}

// --- Explanations ---

type explainRequest struct {
	CodeLine string `json:"code_line"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.CodeLine == "" {
		writeError(w, http.StatusBadRequest, "code_line is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"explanation": s.explainer.Line(r.Context(), req.CodeLine),
	})
}

type summarizeRequest struct {
	Code  string       `json:"code"`
	Trace []trace.Step `json:"trace"`
	Error *string      `json:"error,omitempty"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	tr := &trace.Trace{Steps: req.Trace, Error: req.Error}
	writeJSON(w, http.StatusOK, map[string]string{
		"summary": s.explainer.Summary(r.Context(), req.Code, tr),
	})
}

// --- Demonstration algorithms ---

type graphRequest struct {
	Graph algorithms.Graph `json:"graph"`
	Start int              `json:"start"`
}

func (s *Server) handleBFS(w http.ResponseWriter, r *http.Request) {
	s.handleTraversal(w, r, algorithms.BFS)
}

func (s *Server) handleDFS(w http.ResponseWriter, r *http.Request) {
	s.handleTraversal(w, r, algorithms.DFS)
}

func (s *Server) handleTraversal(w http.ResponseWriter, r *http.Request, walk func(algorithms.Graph, int) algorithms.Traversal) {
	var req graphRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Graph.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, walk(req.Graph, req.Start))
}

type waveRequest struct {
	Numbers []int `json:"numbers"`
}

func (s *Server) handleWaveArray(w http.ResponseWriter, r *http.Request) {
	var req waveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, algorithms.WaveArray(req.Numbers))
}

func logError(what string, err error) {
	if err != nil {
		log.Printf("server: %s: %v", what, err)
	}
}
