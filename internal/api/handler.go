package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/models"
	"SessionPulse/internal/scheduler"
)

// Scheduler is the notification engine as used by the HTTP layer.
type Scheduler interface {
	ScheduleSessionEmails(ctx context.Context, session models.Session) scheduler.ScheduleResult
	HandleSessionUpdate(ctx context.Context, prev, next models.Session) *scheduler.ScheduleResult
	HandleSessionDeleted(ctx context.Context, sessionID string)
	GetSessionJobs(ctx context.Context, sessionID string) ([]models.EmailJob, error)
	GetJob(ctx context.Context, jobID string) (*models.EmailJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, lastError string) error
	CancelJobs(ctx context.Context, jobIDs []string) (scheduler.CancelResult, error)
	RetryAllFailedJobsForSession(ctx context.Context, sessionID string) (scheduler.RetryResult, error)
	SessionProgress(ctx context.Context, sessionID string) (models.JobProgress, error)
	BatchProgress(ctx context.Context, batchID string) (models.JobProgress, error)
	SendSessionUpdateNotifications(ctx context.Context, session models.Session, changes []models.FieldChange, recipientIDs []string) scheduler.NotifyResult
}

type AvailabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}

type Handler struct {
	Scheduler Scheduler
	Sessions  scheduler.SessionSource
	Store     AvailabilityChecker
	Events    chan<- models.DeliveryEvent
	// WebhookSecret is the provider's signing secret ("whsec_..."). Empty
	// accepts unsigned webhooks, for console mode.
	WebhookSecret string
	Validate      *validator.Validate
	Log           *zap.Logger
}

type statusRequest struct {
	Status    models.JobStatus `json:"status" validate:"required,oneof=pending scheduled processing completed failed cancelled"`
	LastError string           `json:"lastError"`
}

type cancelRequest struct {
	JobIDs []string `json:"jobIds" validate:"required,min=1,dive,required"`
}

type notifyRequest struct {
	Changes      []models.FieldChange `json:"changes" validate:"dive"`
	RecipientIDs []string             `json:"recipientIds" validate:"required,min=1,dive,required"`
}

type sessionUpdateResponse struct {
	Session    models.Session            `json:"session"`
	Reschedule *scheduler.ScheduleResult `json:"reschedule,omitempty"`
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Patch("/", h.UpdateSession)
		r.Delete("/", h.DeleteSession)
		r.Post("/schedule", h.ScheduleSession)
		r.Get("/jobs", h.SessionJobs)
		r.Get("/progress", h.SessionProgress)
		r.Post("/retry", h.RetrySession)
		r.Post("/notify", h.NotifySession)
	})

	r.Get("/batches/{id}/progress", h.BatchProgress)

	r.Post("/jobs/cancel", h.CancelJobs)
	r.Get("/jobs/{id}", h.GetJob)
	r.Patch("/jobs/{id}/status", h.UpdateJobStatus)

	r.Post("/webhooks/email-provider", h.ProviderWebhook)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.Store.IsAvailable(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "up"})
}

func (h *Handler) ScheduleSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSessionDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.Scheduler.ScheduleSessionEmails(r.Context(), session))
}

// UpdateSession writes the change to the session record, then lets the
// scheduler react to it. Notification failures never fail the request.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update models.SessionUpdate
	if !h.decode(w, r, &update) {
		return
	}

	prev, err := h.Sessions.GetSessionDetail(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Sessions.UpdateSession(r.Context(), id, update); err != nil {
		h.writeError(w, err)
		return
	}
	next, err := h.Sessions.GetSessionDetail(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionUpdateResponse{
		Session:    next,
		Reschedule: h.Scheduler.HandleSessionUpdate(r.Context(), prev, next),
	})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.Scheduler.HandleSessionDeleted(r.Context(), id)

	if err := h.Sessions.DeleteSession(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SessionJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Scheduler.GetSessionJobs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) SessionProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Scheduler.SessionProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) BatchProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Scheduler.BatchProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) RetrySession(w http.ResponseWriter, r *http.Request) {
	result, err := h.Scheduler.RetryAllFailedJobsForSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) NotifySession(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.Sessions.GetSessionDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.Scheduler.SendSessionUpdateNotifications(r.Context(), session, req.Changes, req.RecipientIDs))
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Scheduler.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if job == nil {
		h.writeError(w, errs.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.Scheduler.UpdateJobStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.LastError); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelJobs(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.Scheduler.CancelJobs(r.Context(), req.JobIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	if err := h.Validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrSessionNotFound), errors.Is(err, errs.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrStatusTransitionDenied):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
