package models

import "time"

// TaskStatus is the workflow state of a Task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// Next returns the following status in the todo -> done workflow.
// Done stays done.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case TaskTodo:
		return TaskInProgress
	case TaskInProgress:
		return TaskReview
	case TaskReview, TaskDone:
		return TaskDone
	}
	return TaskTodo
}

// Priority is shared by task priority and bug severity.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// BugStatus is the triage state of a Bug.
type BugStatus string

const (
	BugOpen       BugStatus = "open"
	BugInProgress BugStatus = "in_progress"
	BugFixed      BugStatus = "fixed"
	BugClosed     BugStatus = "closed"
)

// Project groups tasks and bugs.
type Project struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	OwnerID     int64      `json:"owner_id"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Task is a unit of planned work inside a project.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	ProjectID   int64      `json:"project_id"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Bug is a defect report inside a project.
type Bug struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    Priority   `json:"severity"`
	Status      BugStatus  `json:"status"`
	ProjectID   int64      `json:"project_id"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
	ReportedBy  int64      `json:"reported_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// DashboardStats is the aggregate returned by the analytics endpoint.
type DashboardStats struct {
	TotalProjects  int     `json:"total_projects"`
	TotalTasks     int     `json:"total_tasks"`
	TotalBugs      int     `json:"total_bugs"`
	OpenBugs       int     `json:"open_bugs"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

// ProjectInput is the body for creating a project.
type ProjectInput struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
}

// ProjectPatch is the body for a partial project update. Nil fields are not sent.
type ProjectPatch struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,notblank"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// TaskInput is the body for creating a task.
type TaskInput struct {
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo in_progress review done"`
	Priority    Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	ProjectID   int64      `json:"project_id" validate:"required,gt=0"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
}

// TaskPatch is the body for a partial task update. Nil fields are not sent.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty" validate:"omitnil,notblank"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty" validate:"omitnil,oneof=todo in_progress review done"`
	Priority    *Priority   `json:"priority,omitempty" validate:"omitnil,oneof=low medium high critical"`
	AssignedTo  *int64      `json:"assigned_to,omitempty"`
}

// BugInput is the body for reporting a bug.
type BugInput struct {
	Title       string    `json:"title" validate:"required,notblank"`
	Description string    `json:"description"`
	Severity    Priority  `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Status      BugStatus `json:"status,omitempty" validate:"omitempty,oneof=open in_progress fixed closed"`
	ProjectID   int64     `json:"project_id" validate:"required,gt=0"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
}

// BugPatch is the body for a partial bug update. Nil fields are not sent.
type BugPatch struct {
	Title       *string    `json:"title,omitempty" validate:"omitnil,notblank"`
	Description *string    `json:"description,omitempty"`
	Severity    *Priority  `json:"severity,omitempty" validate:"omitnil,oneof=low medium high critical"`
	Status      *BugStatus `json:"status,omitempty" validate:"omitnil,oneof=open in_progress fixed closed"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
}
