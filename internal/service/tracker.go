package service

import (
	"context"
	"errors"
	"strings"

	"github.com/atinyakov/devtrack/internal/models"
)

// ErrForbidden is returned when the actor's role does not allow a change.
var ErrForbidden = errors.New("not enough permissions")

// TrackerRepository defines the persistence operations needed by the
// TrackerService. Lookups of missing rows return models.ErrNotFound.
type TrackerRepository interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	CreateProject(ctx context.Context, p models.Project) (models.Project, error)
	SaveProject(ctx context.Context, p models.Project) (models.Project, error)

	// ListTasks returns tasks of one project, or all when projectID is 0.
	ListTasks(ctx context.Context, projectID int64) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	SaveTask(ctx context.Context, t models.Task) (models.Task, error)

	// ListBugs returns bugs of one project, or all when projectID is 0.
	ListBugs(ctx context.Context, projectID int64) ([]models.Bug, error)
	GetBug(ctx context.Context, id int64) (models.Bug, error)
	CreateBug(ctx context.Context, b models.Bug) (models.Bug, error)
	SaveBug(ctx context.Context, b models.Bug) (models.Bug, error)

	Dashboard(ctx context.Context) (models.DashboardStats, error)
}

// Notifier fans a change out to connected live clients.
type Notifier interface {
	Broadcast(t models.EventType, data any)
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(models.EventType, any) {}

// TrackerService applies the permission rules and defaults of the
// project/task/bug workflow and announces every change.
type TrackerService struct {
	repo   TrackerRepository
	notify Notifier
}

// NewTrackerService constructs a TrackerService. A nil notifier drops events.
func NewTrackerService(repo TrackerRepository, notify Notifier) *TrackerService {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &TrackerService{repo: repo, notify: notify}
}

func (s *TrackerService) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *TrackerService) GetProject(ctx context.Context, id int64) (models.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// CreateProject requires an admin or manager; the actor becomes the owner.
func (s *TrackerService) CreateProject(ctx context.Context, actor models.Identity, in models.ProjectInput) (models.Project, error) {
	if !actor.Role.CanManageProjects() {
		return models.Project{}, ErrForbidden
	}
	p, err := s.repo.CreateProject(ctx, models.Project{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		OwnerID:     actor.ID,
		IsActive:    true,
	})
	if err != nil {
		return models.Project{}, err
	}
	s.notify.Broadcast(models.EventProjectCreated, p)
	return p, nil
}

// UpdateProject is allowed to admins, managers and the project owner.
func (s *TrackerService) UpdateProject(ctx context.Context, actor models.Identity, id int64, patch models.ProjectPatch) (models.Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if !actor.Role.CanManageProjects() && p.OwnerID != actor.ID {
		return models.Project{}, ErrForbidden
	}

	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}

	p, err = s.repo.SaveProject(ctx, p)
	if err != nil {
		return models.Project{}, err
	}
	s.notify.Broadcast(models.EventProjectUpdated, p)
	return p, nil
}

func (s *TrackerService) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	return s.repo.ListTasks(ctx, projectID)
}

func (s *TrackerService) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// CreateTask defaults to a medium priority todo created by the actor.
func (s *TrackerService) CreateTask(ctx context.Context, actor models.Identity, in models.TaskInput) (models.Task, error) {
	t := models.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		ProjectID:   in.ProjectID,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   actor.ID,
	}
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	t, err := s.repo.CreateTask(ctx, t)
	if err != nil {
		return models.Task{}, err
	}
	s.notify.Broadcast(models.EventTaskCreated, t)
	return t, nil
}

// UpdateTask applies the set fields of patch. Any signed-in user may
// move a task.
func (s *TrackerService) UpdateTask(ctx context.Context, _ models.Identity, id int64, patch models.TaskPatch) (models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		t.AssignedTo = patch.AssignedTo
	}

	t, err = s.repo.SaveTask(ctx, t)
	if err != nil {
		return models.Task{}, err
	}
	s.notify.Broadcast(models.EventTaskUpdated, t)
	return t, nil
}

func (s *TrackerService) ListBugs(ctx context.Context, projectID int64) ([]models.Bug, error) {
	return s.repo.ListBugs(ctx, projectID)
}

func (s *TrackerService) GetBug(ctx context.Context, id int64) (models.Bug, error) {
	return s.repo.GetBug(ctx, id)
}

// CreateBug defaults to an open medium severity report by the actor.
func (s *TrackerService) CreateBug(ctx context.Context, actor models.Identity, in models.BugInput) (models.Bug, error) {
	b := models.Bug{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Severity:    in.Severity,
		Status:      in.Status,
		ProjectID:   in.ProjectID,
		AssignedTo:  in.AssignedTo,
		ReportedBy:  actor.ID,
	}
	if b.Severity == "" {
		b.Severity = models.PriorityMedium
	}
	if b.Status == "" {
		b.Status = models.BugOpen
	}

	b, err := s.repo.CreateBug(ctx, b)
	if err != nil {
		return models.Bug{}, err
	}
	s.notify.Broadcast(models.EventBugCreated, b)
	return b, nil
}

// canEditBug: admins, managers, the assignee and the reporter.
func canEditBug(actor models.Identity, b models.Bug) bool {
	if actor.Role.CanManageProjects() || b.ReportedBy == actor.ID {
		return true
	}
	return b.AssignedTo != nil && *b.AssignedTo == actor.ID
}

// UpdateBug applies the set fields of patch when canEditBug allows it.
func (s *TrackerService) UpdateBug(ctx context.Context, actor models.Identity, id int64, patch models.BugPatch) (models.Bug, error) {
	b, err := s.repo.GetBug(ctx, id)
	if err != nil {
		return models.Bug{}, err
	}
	if !canEditBug(actor, b) {
		return models.Bug{}, ErrForbidden
	}

	if patch.Title != nil {
		b.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		b.Description = *patch.Description
	}
	if patch.Severity != nil {
		b.Severity = *patch.Severity
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		b.AssignedTo = patch.AssignedTo
	}

	b, err = s.repo.SaveBug(ctx, b)
	if err != nil {
		return models.Bug{}, err
	}
	s.notify.Broadcast(models.EventBugUpdated, b)
	return b, nil
}

// Dashboard returns the totals plus the task completion percentage.
func (s *TrackerService) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	stats, err := s.repo.Dashboard(ctx)
	if err != nil {
		return models.DashboardStats{}, err
	}
	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}
	return stats, nil
}
