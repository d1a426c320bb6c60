package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/storyscout/engine/domain"
	"github.com/WessleyAI/storyscout/engine/pipeline"
	"github.com/WessleyAI/storyscout/engine/query"
	"github.com/WessleyAI/storyscout/pkg/metrics"
	"github.com/WessleyAI/storyscout/pkg/mid"
)

func newServeCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := rf.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      newRouter(a),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api server starting", "addr", a.cfg.HTTP.Addr, "store", a.cfg.Store.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newRouter(a *app) http.Handler {
	h := &handlers{runner: a.runner, query: a.query, log: a.log}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		mid.OTel("storyscout"),
		mid.Recover(a.log),
		mid.Logger(a.log),
		mid.CORS(a.cfg.HTTP.CORSOrigin),
		a.metrics.Middleware,
	)
	r.Get("/api/health", h.health)
	r.Post("/api/runs", h.startRun)
	r.Get("/api/runs/latest", h.latestRun)
	r.Get("/api/best", h.best)
	r.Get("/api/posts", h.posts)
	r.Handle("/metrics", metrics.Handler(a.registry))

	return r
}

type handlers struct {
	runner *pipeline.Runner
	query  *query.Engine
	log    *slog.Logger
}

// runRequest is the JSON body for POST /api/runs. Wait defaults to true; with
// wait=false a busy runner answers 409 instead of queueing the request.
type runRequest struct {
	domain.RunParams
	Wait *bool `json:"wait,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeBody(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, domain.NewValidationError("body", err.Error(), domain.ErrInvalidParam))
		return
	}
	run := h.runner.Run
	if req.Wait != nil && !*req.Wait {
		run = h.runner.TryRun
	}
	rep, err := run(r.Context(), req.RunParams)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeBody(w, http.StatusOK, rep)
}

func (h *handlers) latestRun(w http.ResponseWriter, _ *http.Request) {
	rep := h.runner.Last()
	if rep.RunID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeBody(w, http.StatusOK, rep)
}

func (h *handlers) best(w http.ResponseWriter, r *http.Request) {
	best, ok, err := h.query.Best(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeBody(w, http.StatusOK, best)
}

func (h *handlers) posts(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("min_score")
	threshold, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, h.log, domain.NewValidationError("min_score", raw, domain.ErrInvalidParam))
		return
	}
	if err := domain.ValidateMinScore(threshold); err != nil {
		writeError(w, h.log, err)
		return
	}
	posts, err := h.query.Ranked(r.Context(), float64(threshold))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeBody(w, http.StatusOK, posts)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		msg = "internal server error"
	}
	writeBody(w, status, map[string]string{"error": msg})
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
