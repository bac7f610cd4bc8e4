package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/devtrack/internal/models"
)

// PostgresTrackerRepository stores projects, tasks and bugs.
type PostgresTrackerRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresTrackerRepository creates a PostgresTrackerRepository over db.
func NewPostgresTrackerRepository(db *sql.DB) *PostgresTrackerRepository {
	return &PostgresTrackerRepository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

const projectColumns = `id, name, description, COALESCE(owner_id, 0), is_active, created_at, updated_at`

func scanProject(s scanner) (models.Project, error) {
	var (
		p       models.Project
		updated sql.NullTime
	)
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.IsActive, &p.CreatedAt, &updated)
	p.UpdatedAt = timePtr(updated)
	return p, err
}

// ListProjects returns every project ordered by id.
func (r *PostgresTrackerRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns one project or models.ErrNotFound.
func (r *PostgresTrackerRepository) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return models.Project{}, fmt.Errorf("get project %d: %w", id, translate(err))
	}
	return p, nil
}

// CreateProject inserts p and returns the stored row.
func (r *PostgresTrackerRepository) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	stored, err := scanProject(r.DB.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, owner_id, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns,
		p.Name, p.Description, p.OwnerID, p.IsActive,
	))
	if err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", translate(err))
	}
	return stored, nil
}

// SaveProject writes every mutable field of p and stamps updated_at.
func (r *PostgresTrackerRepository) SaveProject(ctx context.Context, p models.Project) (models.Project, error) {
	stored, err := scanProject(r.DB.QueryRowContext(ctx, `
		UPDATE projects SET name = $2, description = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+projectColumns,
		p.ID, p.Name, p.Description, p.IsActive,
	))
	if err != nil {
		return models.Project{}, fmt.Errorf("save project %d: %w", p.ID, translate(err))
	}
	return stored, nil
}

const taskColumns = `id, title, description, status, priority, project_id, assigned_to, COALESCE(created_by, 0), created_at, updated_at`

func scanTask(s scanner) (models.Task, error) {
	var (
		t        models.Task
		assigned sql.NullInt64
		updated  sql.NullTime
	)
	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ProjectID,
		&assigned, &t.CreatedBy, &t.CreatedAt, &updated)
	t.AssignedTo = idPtr(assigned)
	t.UpdatedAt = timePtr(updated)
	return t, err
}

// ListTasks returns tasks ordered by id. A zero projectID means all projects.
func (r *PostgresTrackerRepository) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE ($1 = 0 OR project_id = $1) ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns one task or models.ErrNotFound.
func (r *PostgresTrackerRepository) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %d: %w", id, translate(err))
	}
	return t, nil
}

// CreateTask inserts t. An unknown project yields models.ErrNotFound.
func (r *PostgresTrackerRepository) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	stored, err := scanTask(r.DB.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, status, priority, project_id, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+taskColumns,
		t.Title, t.Description, t.Status, t.Priority, t.ProjectID, nullableID(t.AssignedTo), t.CreatedBy,
	))
	if err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", translate(err))
	}
	return stored, nil
}

// SaveTask writes every mutable field of t and stamps updated_at.
func (r *PostgresTrackerRepository) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	stored, err := scanTask(r.DB.QueryRowContext(ctx, `
		UPDATE tasks SET title = $2, description = $3, status = $4, priority = $5, assigned_to = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, t.Status, t.Priority, nullableID(t.AssignedTo),
	))
	if err != nil {
		return models.Task{}, fmt.Errorf("save task %d: %w", t.ID, translate(err))
	}
	return stored, nil
}

const bugColumns = `id, title, description, severity, status, project_id, assigned_to, COALESCE(reported_by, 0), created_at, updated_at`

func scanBug(s scanner) (models.Bug, error) {
	var (
		b        models.Bug
		assigned sql.NullInt64
		updated  sql.NullTime
	)
	err := s.Scan(&b.ID, &b.Title, &b.Description, &b.Severity, &b.Status, &b.ProjectID,
		&assigned, &b.ReportedBy, &b.CreatedAt, &updated)
	b.AssignedTo = idPtr(assigned)
	b.UpdatedAt = timePtr(updated)
	return b, err
}

// ListBugs returns bugs ordered by id. A zero projectID means all projects.
func (r *PostgresTrackerRepository) ListBugs(ctx context.Context, projectID int64) ([]models.Bug, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE ($1 = 0 OR project_id = $1) ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer rows.Close()

	bugs := []models.Bug{}
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bug: %w", err)
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

// GetBug returns one bug or models.ErrNotFound.
func (r *PostgresTrackerRepository) GetBug(ctx context.Context, id int64) (models.Bug, error) {
	b, err := scanBug(r.DB.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = $1`, id))
	if err != nil {
		return models.Bug{}, fmt.Errorf("get bug %d: %w", id, translate(err))
	}
	return b, nil
}

// CreateBug inserts b. An unknown project yields models.ErrNotFound.
func (r *PostgresTrackerRepository) CreateBug(ctx context.Context, b models.Bug) (models.Bug, error) {
	stored, err := scanBug(r.DB.QueryRowContext(ctx, `
		INSERT INTO bugs (title, description, severity, status, project_id, assigned_to, reported_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+bugColumns,
		b.Title, b.Description, b.Severity, b.Status, b.ProjectID, nullableID(b.AssignedTo), b.ReportedBy,
	))
	if err != nil {
		return models.Bug{}, fmt.Errorf("create bug: %w", translate(err))
	}
	return stored, nil
}

// SaveBug writes every mutable field of b and stamps updated_at.
func (r *PostgresTrackerRepository) SaveBug(ctx context.Context, b models.Bug) (models.Bug, error) {
	stored, err := scanBug(r.DB.QueryRowContext(ctx, `
		UPDATE bugs SET title = $2, description = $3, severity = $4, status = $5, assigned_to = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+bugColumns,
		b.ID, b.Title, b.Description, b.Severity, b.Status, nullableID(b.AssignedTo),
	))
	if err != nil {
		return models.Bug{}, fmt.Errorf("save bug %d: %w", b.ID, translate(err))
	}
	return stored, nil
}

// Dashboard counts the rows behind the analytics endpoint. The
// completion rate is left to the caller.
func (r *PostgresTrackerRepository) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	var s models.DashboardStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM projects),
			(SELECT COUNT(*) FROM tasks),
			(SELECT COUNT(*) FROM tasks WHERE status = 'done'),
			(SELECT COUNT(*) FROM bugs),
			(SELECT COUNT(*) FROM bugs WHERE status = 'open')
	`).Scan(&s.TotalProjects, &s.TotalTasks, &s.CompletedTasks, &s.TotalBugs, &s.OpenBugs)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("dashboard: %w", err)
	}
	return s, nil
}
