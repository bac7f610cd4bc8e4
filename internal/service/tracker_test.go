package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/devtrack/internal/models"
)

// memRepo is an in-memory TrackerRepository.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	projects map[int64]models.Project
	tasks    map[int64]models.Task
	bugs     map[int64]models.Bug
}

func newMemRepo() *memRepo {
	return &memRepo{
		projects: map[int64]models.Project{},
		tasks:    map[int64]models.Task{},
		bugs:     map[int64]models.Bug{},
	}
}

func (r *memRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) ListProjects(context.Context) ([]models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Project{}
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r *memRepo) GetProject(_ context.Context, id int64) (models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return models.Project{}, models.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) CreateProject(_ context.Context, p models.Project) (models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	r.projects[p.ID] = p
	return p, nil
}

func (r *memRepo) SaveProject(_ context.Context, p models.Project) (models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	return p, nil
}

func (r *memRepo) ListTasks(_ context.Context, projectID int64) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Task{}
	for _, t := range r.tasks {
		if projectID == 0 || t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) GetTask(_ context.Context, id int64) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return models.Task{}, models.ErrNotFound
	}
	return t, nil
}

func (r *memRepo) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[t.ProjectID]; !ok {
		return models.Task{}, models.ErrNotFound
	}
	t.ID = r.id()
	r.tasks[t.ID] = t
	return t, nil
}

func (r *memRepo) SaveTask(_ context.Context, t models.Task) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
	return t, nil
}

func (r *memRepo) ListBugs(_ context.Context, projectID int64) ([]models.Bug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Bug{}
	for _, b := range r.bugs {
		if projectID == 0 || b.ProjectID == projectID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memRepo) GetBug(_ context.Context, id int64) (models.Bug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bugs[id]
	if !ok {
		return models.Bug{}, models.ErrNotFound
	}
	return b, nil
}

func (r *memRepo) CreateBug(_ context.Context, b models.Bug) (models.Bug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[b.ProjectID]; !ok {
		return models.Bug{}, models.ErrNotFound
	}
	b.ID = r.id()
	r.bugs[b.ID] = b
	return b, nil
}

func (r *memRepo) SaveBug(_ context.Context, b models.Bug) (models.Bug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bugs[b.ID] = b
	return b, nil
}

func (r *memRepo) Dashboard(context.Context) (models.DashboardStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := models.DashboardStats{TotalProjects: len(r.projects), TotalTasks: len(r.tasks), TotalBugs: len(r.bugs)}
	for _, t := range r.tasks {
		if t.Status == models.TaskDone {
			s.CompletedTasks++
		}
	}
	for _, b := range r.bugs {
		if b.Status == models.BugOpen {
			s.OpenBugs++
		}
	}
	return s, nil
}

type recorded struct {
	typ  models.EventType
	data any
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) Broadcast(t models.EventType, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{t, data})
}

func (r *recorder) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.typ)
	}
	return out
}

var (
	admin     = models.Identity{ID: 1, Email: "admin@devtrack.com", Role: models.RoleAdmin}
	manager   = models.Identity{ID: 2, Email: "manager@devtrack.com", Role: models.RoleManager}
	developer = models.Identity{ID: 3, Email: "developer@devtrack.com", Role: models.RoleDeveloper}
	tester    = models.Identity{ID: 4, Email: "tester@devtrack.com", Role: models.RoleTester}
)

func newTracker(t *testing.T) (*TrackerService, *memRepo, *recorder) {
	t.Helper()
	repo := newMemRepo()
	rec := &recorder{}
	return NewTrackerService(repo, rec), repo, rec
}

func TestCreateProject_Roles(t *testing.T) {
	svc, _, rec := newTracker(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, manager, models.ProjectInput{Name: "  Web  ", Description: "site"})
	require.NoError(t, err)
	assert.Equal(t, "Web", p.Name)
	assert.Equal(t, manager.ID, p.OwnerID)
	assert.True(t, p.IsActive)

	_, err = svc.CreateProject(ctx, developer, models.ProjectInput{Name: "Nope"})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, []models.EventType{models.EventProjectCreated}, rec.types())
}

func TestUpdateProject_OwnerOrManager(t *testing.T) {
	svc, repo, rec := newTracker(t)
	ctx := context.Background()

	owned, err := repo.CreateProject(ctx, models.Project{Name: "Dev's", OwnerID: developer.ID, IsActive: true})
	require.NoError(t, err)

	name := "Renamed"
	inactive := false
	p, err := svc.UpdateProject(ctx, developer, owned.ID, models.ProjectPatch{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.False(t, p.IsActive)

	_, err = svc.UpdateProject(ctx, tester, owned.ID, models.ProjectPatch{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateProject(ctx, admin, owned.ID, models.ProjectPatch{})
	assert.NoError(t, err)

	_, err = svc.UpdateProject(ctx, admin, 999, models.ProjectPatch{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, []models.EventType{models.EventProjectUpdated, models.EventProjectUpdated}, rec.types())
}

func TestTaskWorkflow(t *testing.T) {
	svc, _, rec := newTracker(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, admin, models.ProjectInput{Name: "Core"})
	require.NoError(t, err)

	task, err := svc.CreateTask(ctx, developer, models.TaskInput{Title: "Write docs", ProjectID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, models.TaskTodo, task.Status)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, developer.ID, task.CreatedBy)

	_, err = svc.CreateTask(ctx, developer, models.TaskInput{Title: "Orphan", ProjectID: 999})
	assert.ErrorIs(t, err, models.ErrNotFound)

	status := models.TaskDone
	task, err = svc.UpdateTask(ctx, tester, task.ID, models.TaskPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, task.Status)
	assert.Equal(t, "Write docs", task.Title)

	_, err = svc.UpdateTask(ctx, tester, 999, models.TaskPatch{Status: &status})
	assert.ErrorIs(t, err, models.ErrNotFound)

	tasks, err := svc.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	assert.Equal(t, []models.EventType{
		models.EventProjectCreated, models.EventTaskCreated, models.EventTaskUpdated,
	}, rec.types())
}

func TestUpdateBug_Permissions(t *testing.T) {
	svc, _, _ := newTracker(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, admin, models.ProjectInput{Name: "Core"})
	require.NoError(t, err)

	assignee := developer.ID
	bug, err := svc.CreateBug(ctx, tester, models.BugInput{Title: "Crash", ProjectID: p.ID, AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Equal(t, models.BugOpen, bug.Status)
	assert.Equal(t, models.PriorityMedium, bug.Severity)
	assert.Equal(t, tester.ID, bug.ReportedBy)

	other := models.Identity{ID: 9, Role: models.RoleDeveloper}
	fixed := models.BugFixed
	tests := []struct {
		name    string
		actor   models.Identity
		wantErr error
	}{
		{"reporter", tester, nil},
		{"assignee", developer, nil},
		{"manager", manager, nil},
		{"unrelated developer", other, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateBug(ctx, tt.actor, bug.ID, models.BugPatch{Status: &fixed})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDashboard_CompletionRate(t *testing.T) {
	svc, repo, _ := newTracker(t)
	ctx := context.Background()

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.CompletionRate)

	p, _ := repo.CreateProject(ctx, models.Project{Name: "Core"})
	for _, s := range []models.TaskStatus{models.TaskDone, models.TaskTodo, models.TaskTodo, models.TaskReview} {
		_, err := repo.CreateTask(ctx, models.Task{Title: "t", Status: s, ProjectID: p.ID})
		require.NoError(t, err)
	}

	stats, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalTasks)
	assert.InDelta(t, 25.0, stats.CompletionRate, 0.001)
}

func TestNilNotifier(t *testing.T) {
	svc := NewTrackerService(newMemRepo(), nil)
	_, err := svc.CreateProject(context.Background(), admin, models.ProjectInput{Name: "Quiet"})
	assert.NoError(t, err)
}

func TestRepositoryErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")
	svc := NewTrackerService(failingRepo{memRepo: newMemRepo(), err: boom}, nil)
	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, boom)
}

type failingRepo struct {
	*memRepo
	err error
}

func (f failingRepo) Dashboard(context.Context) (models.DashboardStats, error) {
	return models.DashboardStats{}, f.err
}
