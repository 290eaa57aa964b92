package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nadmax/fieldops/internal/httputil"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/nadmax/fieldops/internal/service"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type CreateJobRequest struct {
	Period   string `json:"period"`
	WorkerID *int64 `json:"worker_id" validate:"omitempty,gt=0"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (a *API) handleJobs(w http.ResponseWriter, r *http.Request) {
	if a.jobs == nil {
		httputil.WriteJSONError(w, "Export jobs are not available", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodPost:
		a.createJob(w, r)
	case http.MethodGet:
		a.listJobs(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := defaultPeriod
	if req.Period != "" {
		parsed, err := period.Parse(req.Period)
		if err != nil {
			writeError(w, err)
			return
		}
		p = parsed
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := a.validate.Struct(req); err != nil {
		field := "request"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = verrs[0].Field()
		}
		writeError(w, &service.ValidationError{Field: field, Message: "is invalid"})
		return
	}

	job := queue.NewJob(p, req.WorkerID, req.Email)
	if id, ok := parseUserID(r.Header.Get(userIDHeader)); ok {
		job.RequestedBy = id
	}

	if err := a.jobs.Enqueue(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue export job")
		httputil.WriteJSONError(w, "Failed to enqueue export job", http.StatusInternalServerError)
		return
	}
	metrics.RecordExportJob(string(queue.StatusPending))

	log.Info().Str("job_id", job.ID).Str("period", p.String()).Msg("Export job enqueued")
	httputil.WriteJSON(w, job, http.StatusAccepted)
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.jobs.GetAllJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, jobs, http.StatusOK)
}

func (a *API) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if a.jobs == nil {
		httputil.WriteJSONError(w, "Export jobs are not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, jobsPrefix)
	if jobID == "" || strings.Contains(jobID, "/") {
		httputil.WriteJSONError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	job, err := a.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, job, http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close request body")
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}
