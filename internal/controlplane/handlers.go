package controlplane

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finey-app/finey/internal/lifecycle"
	"github.com/finey-app/finey/internal/models"
)

// --- Task Handlers ---

// TaskListResponse is returned by GET /tasks.
type TaskListResponse struct {
	Tasks    []models.Task      `json:"tasks"`
	Overview lifecycle.Overview `json:"overview"`
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ctrl.Tasks(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	respondJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Overview: s.ctrl.Overview(tasks)})
}

// CreateTaskRequest is the body of POST /tasks. Omitted optional fields take
// the default draft values.
type CreateTaskRequest struct {
	Name                string     `json:"name"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	NotifyBeforeMinutes *int       `json:"notify_before_minutes,omitempty"`
	Deposit             *int64     `json:"deposit,omitempty"`
}

// Draft applies req over the default draft.
func (req CreateTaskRequest) Draft(defaults models.TaskDraft) models.TaskDraft {
	d := defaults
	d.Name = req.Name
	if req.DueDate != nil {
		d.DueDate = *req.DueDate
	}
	if req.NotifyBeforeMinutes != nil {
		d.NotifyBefore = time.Duration(*req.NotifyBeforeMinutes) * time.Minute
	}
	if req.Deposit != nil {
		d.Deposit = *req.Deposit
	}
	return d
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}

	task, err := s.ctrl.AddTask(r.Context(), sessionFrom(r.Context()), req.Draft(s.ctrl.DefaultDraft()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

// CompleteTaskRequest is the optional body of POST /tasks/{id}/complete.
type CompleteTaskRequest struct {
	Proof *models.Proof `json:"proof,omitempty"`
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	var req CompleteTaskRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}

	task, err := s.ctrl.CompleteTask(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"), req.Proof)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) markIncomplete(w http.ResponseWriter, r *http.Request) {
	task, err := s.ctrl.MarkIncomplete(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.DeleteTask(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Account Handlers ---

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	status, err := s.ctrl.AccountStatus(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// PaymentProviderBody is the body of the payment-provider endpoints.
type PaymentProviderBody struct {
	Provider models.PaymentProvider `json:"provider"`
}

func (s *Server) getPaymentProvider(w http.ResponseWriter, r *http.Request) {
	p, err := s.ctrl.PaymentProvider(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PaymentProviderBody{Provider: p})
}

func (s *Server) setPaymentProvider(w http.ResponseWriter, r *http.Request) {
	var req PaymentProviderBody
	if err := decodeBody(r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.ctrl.SetPaymentProvider(r.Context(), sessionFrom(r.Context()), req.Provider); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// --- Session and Audit Handlers ---

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.SignOut(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", ErrInvalidBody))
			return
		}
		limit = n
	}

	entries, err := s.store.ListAudit(r.Context(), r.URL.Query().Get("task_id"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// decodeBody decodes a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}
