package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/ssogate/internal/service"
)

// JobRunner runs maintenance jobs on demand.
type JobRunner interface {
	Jobs() []string
	RunNow(ctx context.Context, name string) error
}

// JobHandlers exposes the refresh jobs to administrators.
type JobHandlers struct {
	Svc    JobRunner
	Logger *slog.Logger
}

// List returns the registered job names.
// GET /admin/jobs.
func (h *JobHandlers) List(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": h.Svc.Jobs()})
}

// Run executes a job immediately and waits for it to finish.
// POST /admin/jobs/{name}/run.
func (h *JobHandlers) Run(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := h.Svc.RunNow(r.Context(), name)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
	case errors.Is(err, service.ErrUnknownJob):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "unknown_job", Err: err})
	default:
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "manual job run failed", "job", name, "error", err)
		}
		WriteAppError(w, err)
	}
}
