// Package server exposes the task store over REST.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tgienger/tdl/internal/db"
	"github.com/tgienger/tdl/internal/models"
)

// Repo is the persistence the handlers need
type Repo interface {
	ListTasks() ([]models.Task, error)
	CreateTask(nt models.NewTask) (*models.Task, error)
	UpdateTask(id int64, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(id int64) error
	TaskCount() (int, error)
}

// Handler serves the /todos resource
type Handler struct {
	repo   Repo
	logger *log.Logger
}

// NewHandler creates a handler backed by repo. A nil logger discards output.
func NewHandler(repo Repo, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handler{repo: repo, logger: logger}
}

// Routes returns the mux with every middleware applied
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /todos", h.listTodos)
	mux.HandleFunc("POST /todos", h.addTodo)
	mux.HandleFunc("GET /todos/status", h.status)
	mux.HandleFunc("PUT /todos/{id}", h.updateTodo)
	mux.HandleFunc("DELETE /todos/{id}", h.deleteTodo)

	return Chain(mux,
		WithRequestID,
		WithRecover(h.logger),
		WithAccessLog(h.logger),
		WithCORS,
	)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(out)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GET /todos
func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repo.ListTasks()
	if err != nil {
		h.internal(w, r, "listing tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// POST /todos
func (h *Handler) addTodo(w http.ResponseWriter, r *http.Request) {
	var in models.NewTask
	if err := decodeJSON(w, r, &in); err != nil || strings.TrimSpace(in.Title) == "" {
		writeErr(w, http.StatusBadRequest, "Title is required")
		return
	}
	in.Priority = in.Priority.OrDefault()
	if !in.Priority.IsValid() {
		writeErr(w, http.StatusBadRequest, "Priority must be low, medium or high")
		return
	}
	in.Completed = false

	task, err := h.repo.CreateTask(in)
	if err != nil {
		h.internal(w, r, "adding task", err)
		return
	}
	h.logger.Debug("added task", "id", task.ID, "title", task.Title)
	writeJSON(w, http.StatusCreated, task)
}

// PUT /todos/{id}
func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusNotFound, "Todo not found")
		return
	}

	var patch models.TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil || patch.IsEmpty() {
		writeErr(w, http.StatusBadRequest, "No data provided")
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		writeErr(w, http.StatusBadRequest, "Title is required")
		return
	}
	if patch.Priority != nil {
		p := patch.Priority.OrDefault()
		if !p.IsValid() {
			writeErr(w, http.StatusBadRequest, "Priority must be low, medium or high")
			return
		}
		patch.Priority = &p
	}

	task, err := h.repo.UpdateTask(id, patch)
	if errors.Is(err, db.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		h.internal(w, r, "updating task", err)
		return
	}
	h.logger.Debug("updated task", "id", task.ID)
	writeJSON(w, http.StatusOK, task)
}

// DELETE /todos/{id}
func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusNotFound, "Todo not found")
		return
	}

	err := h.repo.DeleteTask(id)
	if errors.Is(err, db.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		h.internal(w, r, "deleting task", err)
		return
	}
	h.logger.Debug("deleted task", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Todo deleted"})
}

// GET /todos/status
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.TaskCount()
	if err != nil {
		h.internal(w, r, "counting tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "running",
		"total_todos": n,
		"message":     "tdl task store is working",
	})
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, what string, err error) {
	h.logger.Error(what, "request_id", RequestIDFromContext(r.Context()), "err", err)
	writeErr(w, http.StatusInternalServerError, "internal server error")
}

// Serve runs the HTTP server on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("task store listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
