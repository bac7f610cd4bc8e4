package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atinyakov/devtrack/internal/models"
)

const (
	opLogin         = "login"
	opRegister      = "register"
	opListProjects  = "list projects"
	opGetProject    = "get project"
	opCreateProject = "create project"
	opUpdateProject = "update project"
	opListTasks     = "list tasks"
	opGetTask       = "get task"
	opCreateTask    = "create task"
	opUpdateTask    = "update task"
	opListBugs      = "list bugs"
	opGetBug        = "get bug"
	opCreateBug     = "create bug"
	opUpdateBug     = "update bug"
	opDashboard     = "dashboard"
)

// TaskFilter narrows ListTasks. A zero ProjectID lists every task.
type TaskFilter struct {
	ProjectID int64
}

// BugFilter narrows ListBugs. A zero ProjectID lists every bug.
type BugFilter struct {
	ProjectID int64
}

func projectQuery(id int64) url.Values {
	if id == 0 {
		return nil
	}
	return url.Values{"project_id": {strconv.FormatInt(id, 10)}}
}

func itemPath(collection string, id int64) string {
	return "/" + collection + "/" + strconv.FormatInt(id, 10)
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	in := models.Credentials{Email: email, Password: password}
	if err := c.do(ctx, opLogin, http.MethodPost, "/auth/login", nil, in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates an account and returns its access token.
func (c *Client) Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error) {
	var res models.AuthResult
	if err := c.do(ctx, opRegister, http.MethodPost, "/auth/register", nil, reg, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := c.do(ctx, opListProjects, http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, opGetProject, http.MethodGet, itemPath("projects", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProject validates in locally; a blank name sends nothing.
func (c *Client) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	if err := c.check(&in); err != nil {
		return nil, err
	}
	var out models.Project
	if err := c.do(ctx, opCreateProject, http.MethodPost, "/projects", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (*models.Project, error) {
	if err := c.check(&patch); err != nil {
		return nil, err
	}
	var out models.Project
	if err := c.do(ctx, opUpdateProject, http.MethodPut, itemPath("projects", id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	var out []models.Task
	if err := c.do(ctx, opListTasks, http.MethodGet, "/tasks", projectQuery(f.ProjectID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var out models.Task
	if err := c.do(ctx, opGetTask, http.MethodGet, itemPath("tasks", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	if err := c.check(&in); err != nil {
		return nil, err
	}
	var out models.Task
	if err := c.do(ctx, opCreateTask, http.MethodPost, "/tasks", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	if err := c.check(&patch); err != nil {
		return nil, err
	}
	var out models.Task
	if err := c.do(ctx, opUpdateTask, http.MethodPut, itemPath("tasks", id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBugs(ctx context.Context, f BugFilter) ([]models.Bug, error) {
	var out []models.Bug
	if err := c.do(ctx, opListBugs, http.MethodGet, "/bugs", projectQuery(f.ProjectID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBug(ctx context.Context, id int64) (*models.Bug, error) {
	var out models.Bug
	if err := c.do(ctx, opGetBug, http.MethodGet, itemPath("bugs", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	if err := c.check(&in); err != nil {
		return nil, err
	}
	var out models.Bug
	if err := c.do(ctx, opCreateBug, http.MethodPost, "/bugs", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBug(ctx context.Context, id int64, patch models.BugPatch) (*models.Bug, error) {
	if err := c.check(&patch); err != nil {
		return nil, err
	}
	var out models.Bug
	if err := c.do(ctx, opUpdateBug, http.MethodPut, itemPath("bugs", id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard fetches the aggregate counters.
func (c *Client) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, opDashboard, http.MethodGet, "/analytics/dashboard", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
