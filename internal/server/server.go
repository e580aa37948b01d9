// Package server exposes the forecasting engine over HTTP: a small REST
// surface for submitting and inspecting forecasts, and an SSE stream for
// pipeline progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dusk-indust/foresight/internal/export"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/pipeline"
)

// Server serves the forecast REST API and event stream.
type Server struct {
	store  forecast.Store
	orch   *pipeline.Orchestrator
	hub    *hub
	logger *zap.Logger
	http   *http.Server
}

// New wires a Server over the store and orchestrator. It registers an event
// sink on the orchestrator's reporter, so it must be constructed before the
// first forecast starts.
func New(store forecast.Store, orch *pipeline.Orchestrator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		orch:   orch,
		hub:    newHub(),
		logger: logger,
	}
	orch.Reporter().AddSink(s.hub.broadcast)
	return s
}

// routes builds the request mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /forecasts", s.handleSubmit)
	mux.HandleFunc("GET /forecasts", s.handleList)
	mux.HandleFunc("GET /forecasts/{id}", s.handleGet)
	mux.HandleFunc("GET /forecasts/{id}/report", s.handleReport)
	mux.HandleFunc("POST /forecasts/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

// Start begins serving on addr in a background goroutine and returns
// immediately.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server", zap.Error(err))
		}
	}()

	s.logger.Info("http server listening", zap.String("addr", addr))
	return nil
}

// Stop gracefully shuts down the HTTP server and closes event streams.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.closeAll()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type submitRequest struct {
	GameID   string `json:"gameId"`
	HomeID   string `json:"homeId"`
	AwayID   string `json:"awayId"`
	Preset   string `json:"preset,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

type submitResponse struct {
	ForecastID string `json:"forecastId"`
	TaskID     string `json:"taskId"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.GameID == "" || req.HomeID == "" || req.AwayID == "" {
		writeError(w, http.StatusBadRequest, "gameId, homeId and awayId are required")
		return
	}

	forecastID, taskID, err := s.orch.Start(context.Background(), req.GameID, req.HomeID, req.AwayID, req.Preset, req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{ForecastID: forecastID, TaskID: taskID})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	fc, err := s.store.GetContext(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	fc, err := s.store.GetContext(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	report := export.BuildReport(fc)
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(report.Markdown()))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if gameID := r.URL.Query().Get("gameId"); gameID != "" {
		tasks, err := s.store.TasksByGame(gameID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
		return
	}

	tasks, err := s.store.ActiveTasks()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orch.Cancel(id); err != nil {
		if errors.Is(err, forecast.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"forecastId": id, "status": "cancelling"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, forecast.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
