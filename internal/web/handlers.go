package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/JonMunkholm/restoimport/internal/core"
)

const (
	healthTimeout   = 5 * time.Second
	maxHistoryLimit = 200
)

type healthResponse struct {
	Status  string                `json:"status"`
	Limiter core.RunLimiterStatus `json:"limiter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Limiter: s.service.Limiter()})
}

type stageResponse struct {
	Kind       core.Kind   `json:"kind"`
	Label      string      `json:"label"`
	File       string      `json:"file"`
	Collection string      `json:"collection"`
	Columns    []string    `json:"columns"`
	DependsOn  []core.Kind `json:"depends_on"`
	Indexes    []string    `json:"indexes"`
}

// handleListStages describes the stage plan the server runs.
func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages := s.service.Stages()
	out := make([]stageResponse, 0, len(stages))
	for _, def := range stages {
		indexes := make([]string, 0, len(def.Indexes))
		for _, idx := range def.Indexes {
			indexes = append(indexes, idx.Name)
		}
		deps := def.DependsOn()
		if deps == nil {
			deps = []core.Kind{}
		}
		out = append(out, stageResponse{
			Kind:       def.Kind,
			Label:      def.Label,
			File:       def.File,
			Collection: def.Collection,
			Columns:    def.Columns(),
			DependsOn:  deps,
			Indexes:    indexes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type startRunResponse struct {
	RunID  string         `json:"run_id"`
	Status core.RunStatus `json:"status"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	runID, err := s.service.StartRun(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Location", "/api/runs/"+runID)
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: runID, Status: core.RunRunning})
}

func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.GetRunProgress(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// handleRunResult waits for the run to finish. With ?wait=false it answers
// 202 immediately while the run is still going.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	ctx := r.Context()
	if r.URL.Query().Get("wait") == "false" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		cancel()
	}

	result, err := s.service.GetRunResult(ctx, runID)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() == nil {
			err = core.ErrRunNotFinished
		}
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
