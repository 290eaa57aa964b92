// Package api exposes reports, exports and account operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nadmax/fieldops/internal/dashboard"
	"github.com/nadmax/fieldops/internal/export"
	"github.com/nadmax/fieldops/internal/httputil"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/nadmax/fieldops/internal/report"
	"github.com/nadmax/fieldops/internal/repository"
	"github.com/nadmax/fieldops/internal/repository/models"
	"github.com/nadmax/fieldops/internal/service"
	"github.com/nadmax/fieldops/internal/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var staffRoles = []models.Role{models.RoleDispatcher, models.RoleAdmin}

const (
	userIDHeader  = "X-User-ID"
	defaultPeriod = period.Month
	jobsPrefix    = "/api/reports/export/jobs/"
)

// ReportService is satisfied by *service.ReportService.
type ReportService interface {
	Snapshot(ctx context.Context, p period.Period, workerID *int64) (*stats.Snapshot, error)
	UserStats(ctx context.Context, userID int64) (*stats.UserStats, error)
}

// AccountService is satisfied by *service.AccountService.
type AccountService interface {
	Profile(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, req service.ProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, req service.ChangePasswordRequest) (*service.PasswordChangeResult, error)
}

// JobQueue is satisfied by *queue.Queue.
type JobQueue interface {
	dashboard.JobLister
	Enqueue(ctx context.Context, job *queue.Job) error
	GetJob(ctx context.Context, jobID string) (*queue.Job, error)
}

type Options struct {
	Reports   ReportService
	Accounts  AccountService
	Exporter  *export.Exporter
	Formatter *report.Formatter
	// Jobs is optional; without it the asynchronous export routes answer 503.
	Jobs JobQueue
}

type API struct {
	reports   ReportService
	accounts  AccountService
	exporter  *export.Exporter
	formatter *report.Formatter
	jobs      JobQueue
	validate  *validator.Validate
	mux       *http.ServeMux
}

func NewAPI(opts Options) *API {
	formatter := opts.Formatter
	if formatter == nil {
		formatter = report.NewFormatter(report.DefaultWindow)
	}
	exporter := opts.Exporter
	if exporter == nil {
		exporter = export.NewExporter(opts.Reports, nil)
	}

	api := &API{
		reports:   opts.Reports,
		accounts:  opts.Accounts,
		exporter:  exporter,
		formatter: formatter,
		jobs:      opts.Jobs,
		validate:  newValidator(),
		mux:       http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/reports", a.staffOnly(a.handleReport))
	a.mux.HandleFunc("/api/reports/display", a.staffOnly(a.handleReportDisplay))
	a.mux.HandleFunc("/api/reports/export", a.staffOnly(a.handleExport))
	a.mux.HandleFunc("/api/reports/export/jobs", a.staffOnly(a.handleJobs))
	a.mux.HandleFunc(jobsPrefix, a.staffOnly(a.handleJobByID))

	a.mux.HandleFunc("/api/users/me/stats", a.handleUserStats)
	a.mux.HandleFunc("/api/users/me/stats/display", a.handleUserStatsDisplay)

	a.mux.HandleFunc("/api/auth/me", a.handleMe)
	a.mux.HandleFunc("/api/auth/profile", a.handleProfile)
	a.mux.HandleFunc("/api/auth/password", a.handlePassword)

	if a.jobs != nil {
		dash := dashboard.NewDashboard(a.jobs)
		a.mux.HandleFunc("/api/reports/export/stats", a.staffOnly(getOnly(dash.GetStats)))
		a.mux.HandleFunc("/api/reports/export/history", a.staffOnly(getOnly(dash.GetRecentJobs)))
	}

	a.mux.Handle("/metrics", promhttp.Handler())
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := a.snapshot(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, snap, http.StatusOK)
}

func (a *API) handleReportDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := a.snapshot(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, a.formatter.Format(snap), http.StatusOK)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, workerID, err := reportQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	artifact, err := a.exporter.Export(r.Context(), export.Request{Period: p, WorkerID: workerID}, nil)
	if err != nil {
		metrics.RecordExport(p.String(), metrics.ResultFailed)
		log.Error().Err(err).Str("period", p.String()).Msg("Export failed")
		writeError(w, err)
		return
	}
	metrics.RecordExport(p.String(), metrics.ResultSuccess)

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		log.Warn().Err(err).Msg("Failed to write export body")
	}
}

func (a *API) snapshot(w http.ResponseWriter, r *http.Request) (*stats.Snapshot, bool) {
	p, workerID, err := reportQuery(r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	snap, err := a.reports.Snapshot(r.Context(), p, workerID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return snap, true
}

func (a *API) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	us, ok := a.userStats(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, us, http.StatusOK)
}

func (a *API) handleUserStatsDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	us, ok := a.userStats(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, a.formatter.FormatProfile(us), http.StatusOK)
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) (*stats.UserStats, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}

	us, err := a.reports.UserStats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return us, true
}

// reportQuery reads ?period= (default month) and the optional ?worker_id=.
func reportQuery(r *http.Request) (period.Period, *int64, error) {
	q := r.URL.Query()

	p := defaultPeriod
	if raw := q.Get("period"); raw != "" {
		parsed, err := period.Parse(raw)
		if err != nil {
			return "", nil, err
		}
		p = parsed
	}

	workerID, err := parseWorkerID(q.Get("worker_id"))
	if err != nil {
		return "", nil, err
	}
	return p, workerID, nil
}

var errInvalidWorkerID = &service.ValidationError{Field: "worker_id", Message: "must be a positive integer"}

func parseWorkerID(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidWorkerID
	}
	return &id, nil
}

// requireUser reads the caller's id set by the authenticating gateway.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseUserID(r.Header.Get(userIDHeader))
	if !ok {
		httputil.WriteJSONError(w, "Authentication required", http.StatusUnauthorized)
		return 0, false
	}
	return id, true
}

// staffOnly admits active dispatchers and admins.
func (a *API) staffOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		user, err := a.accounts.Profile(r.Context(), userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			httputil.WriteJSONError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		if !user.IsActive || !slices.Contains(staffRoles, user.Role) {
			log.Warn().Int64("user_id", userID).Str("role", string(user.Role)).Str("path", r.URL.Path).Msg("Report access denied")
			httputil.WriteJSONError(w, "Dispatcher or admin role required", http.StatusForbidden)
			return
		}

		h(w, r)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		httputil.WriteJSON(w, map[string]string{"error": verr.Error(), "field": verr.Field}, http.StatusUnprocessableEntity)
	case errors.Is(err, period.ErrInvalidPeriod):
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, export.ErrExportFailed):
		httputil.WriteJSONError(w, "Failed to export report", http.StatusInternalServerError)
	case errors.Is(err, service.ErrFetchFailed):
		httputil.WriteJSONError(w, "Report data is temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, repository.ErrUserNotFound):
		httputil.WriteJSONError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, queue.ErrJobNotFound):
		httputil.WriteJSONError(w, "Export job not found", http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("Unhandled request error")
		httputil.WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
