package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/pkg/models"
	"github.com/spf13/cobra"
)

// runServe implements the serve command: wire the app, connect external
// tool servers, start the administrative HTTP API and the audit
// retention cron, and block until a shutdown signal arrives.
func runServe(cmd *cobra.Command, configPath string) error {
	logger := slog.Default()
	application, err := buildApp(configPath, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application.connectExternalServers(ctx)

	scheduler := cron.New()
	if application.cfg.Audit.CleanupCron != "" {
		_, err := scheduler.AddFunc(application.cfg.Audit.CleanupCron, func() {
			deleted, err := application.store.Audit().Cleanup(context.Background(), time.Now())
			if err != nil {
				logger.Error("audit cleanup failed", "error", err)
				return
			}
			logger.Info("audit cleanup ran", "deleted", deleted)
		})
		if err != nil {
			return fmt.Errorf("invalid audit.cleanup_cron %q: %w", application.cfg.Audit.CleanupCron, err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{Addr: application.cfg.Server.Addr, Handler: buildMux(application)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sentinel server listening", "addr", application.cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutdown signal received, draining")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// buildMux wires the administrative HTTP API. Patterns use Go 1.22's
// method+wildcard ServeMux routing; no router dependency is needed for
// this small, fixed endpoint set.
func buildMux(application *app) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /approvals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, application.approvals.Pending())
	})
	mux.HandleFunc("POST /approvals/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		if !application.approvals.Approve(r.PathValue("id"), false, nil, "", "api") {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /approvals/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		if !application.approvals.Reject(r.PathValue("id"), "api") {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /autonomy", func(w http.ResponseWriter, r *http.Request) {
		project := r.URL.Query().Get("project")
		level := application.auto.Level(project)
		writeJSON(w, http.StatusOK, models.AutonomySettings{
			ProjectPath: project, Level: level,
			Allowlist: application.auto.Allowlist(project), Blocklist: application.auto.Blocklist(project),
		})
	})
	mux.HandleFunc("POST /autonomy", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Project, Level string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := application.auto.SetLevel(r.Context(), body.Project, models.AutonomyLevel(body.Level)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /audit", func(w http.ResponseWriter, r *http.Request) {
		filter := storage.AuditFilter{SessionID: r.URL.Query().Get("session")}
		filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
		if filter.Limit <= 0 {
			filter.Limit = 1000
		}
		entries, err := application.store.Audit().List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	mux.HandleFunc("POST /kill", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Reason string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Reason == "" {
			body.Reason = "api request"
		}
		application.exec.Cancel(body.Reason)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		streamEvents(w, r, application)
	})

	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Task        string `json:"task"`
			ProjectPath string `json:"project_path"`
			MaxTokens   int    `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var budget *models.TokenBudget
		if body.MaxTokens > 0 {
			budget = models.NewTokenBudget(body.MaxTokens, 0.8)
		}
		go application.exec.Run(context.Background(), body.Task, body.ProjectPath, budget)
		w.WriteHeader(http.StatusAccepted)
	})

	return mux
}

// streamEvents relays the event bus as newline-delimited JSON (Server-Sent
// Events) until the client disconnects or the subscription closes.
func streamEvents(w http.ResponseWriter, r *http.Request, application *app) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	sub := application.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
