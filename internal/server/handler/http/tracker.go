package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/middleware"
	"github.com/atinyakov/devtrack/internal/models"
	"github.com/atinyakov/devtrack/internal/service"
)

// TrackerService defines the project/task/bug operations behind the
// resource endpoints.
type TrackerService interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	CreateProject(ctx context.Context, actor models.Identity, in models.ProjectInput) (models.Project, error)
	UpdateProject(ctx context.Context, actor models.Identity, id int64, patch models.ProjectPatch) (models.Project, error)

	ListTasks(ctx context.Context, projectID int64) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	CreateTask(ctx context.Context, actor models.Identity, in models.TaskInput) (models.Task, error)
	UpdateTask(ctx context.Context, actor models.Identity, id int64, patch models.TaskPatch) (models.Task, error)

	ListBugs(ctx context.Context, projectID int64) ([]models.Bug, error)
	GetBug(ctx context.Context, id int64) (models.Bug, error)
	CreateBug(ctx context.Context, actor models.Identity, in models.BugInput) (models.Bug, error)
	UpdateBug(ctx context.Context, actor models.Identity, id int64, patch models.BugPatch) (models.Bug, error)

	Dashboard(ctx context.Context) (models.DashboardStats, error)
}

// TrackerHandler serves /projects, /tasks, /bugs and /analytics.
type TrackerHandler struct {
	Tracker  TrackerService
	Validate *validator.Validate
	Logger   *zap.Logger
}

// fail maps service errors to responses. notFound names the resource
// for the 404 detail, e.g. "Task not found".
func (h *TrackerHandler) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "Not enough permissions")
	case errors.Is(err, models.ErrNotFound):
		writeDetail(w, http.StatusNotFound, notFound)
	default:
		h.Logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func actor(r *http.Request) models.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}

func (h *TrackerHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Tracker.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *TrackerHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Tracker.GetProject(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *TrackerHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectInput
	if !decode(w, r, h.Validate, &in) {
		return
	}
	p, err := h.Tracker.CreateProject(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *TrackerHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.ProjectPatch
	if !decode(w, r, h.Validate, &patch) {
		return
	}
	p, err := h.Tracker.UpdateProject(r.Context(), actor(r), id, patch)
	if err != nil {
		h.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *TrackerHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := queryProjectID(w, r)
	if !ok {
		return
	}
	tasks, err := h.Tracker.ListTasks(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TrackerHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.Tracker.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TrackerHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var in models.TaskInput
	if !decode(w, r, h.Validate, &in) {
		return
	}
	t, err := h.Tracker.CreateTask(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TrackerHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.TaskPatch
	if !decode(w, r, h.Validate, &patch) {
		return
	}
	t, err := h.Tracker.UpdateTask(r.Context(), actor(r), id, patch)
	if err != nil {
		h.fail(w, r, err, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TrackerHandler) ListBugs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := queryProjectID(w, r)
	if !ok {
		return
	}
	bugs, err := h.Tracker.ListBugs(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, bugs)
}

func (h *TrackerHandler) GetBug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.Tracker.GetBug(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Bug not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *TrackerHandler) CreateBug(w http.ResponseWriter, r *http.Request) {
	var in models.BugInput
	if !decode(w, r, h.Validate, &in) {
		return
	}
	b, err := h.Tracker.CreateBug(r.Context(), actor(r), in)
	if err != nil {
		h.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *TrackerHandler) UpdateBug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.BugPatch
	if !decode(w, r, h.Validate, &patch) {
		return
	}
	b, err := h.Tracker.UpdateBug(r.Context(), actor(r), id, patch)
	if err != nil {
		h.fail(w, r, err, "Bug not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *TrackerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tracker.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
