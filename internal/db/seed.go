package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DemoUser is one of the accounts created on an empty database.
type DemoUser struct {
	Email    string
	Username string
	Password string
	Role     string
}

// DemoUsers are offered as quick logins by the client.
var DemoUsers = []DemoUser{
	{"admin@devtrack.com", "admin", "admin123", "admin"},
	{"manager@devtrack.com", "manager", "manager123", "manager"},
	{"developer@devtrack.com", "developer", "dev123", "developer"},
	{"tester@devtrack.com", "tester", "test123", "tester"},
}

// SeedDemo fills an empty database with the demo users and one sample
// project with a few tasks and bugs. It reports whether anything was
// inserted; a database that already has users is left alone.
func SeedDemo(ctx context.Context, db *sql.DB, hash func(string) (string, error)) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var users int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if users > 0 {
		return false, nil
	}

	ids := make(map[string]int64, len(DemoUsers))
	for _, u := range DemoUsers {
		h, err := hash(u.Password)
		if err != nil {
			return false, fmt.Errorf("hash %s: %w", u.Username, err)
		}
		var id int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO users (email, username, hashed_password, role) VALUES ($1, $2, $3, $4) RETURNING id`,
			u.Email, u.Username, h, u.Role,
		).Scan(&id)
		if err != nil {
			return false, fmt.Errorf("insert user %s: %w", u.Username, err)
		}
		ids[u.Role] = id
	}

	var projectID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO projects (name, description, owner_id) VALUES ($1, $2, $3) RETURNING id`,
		"DevTrack Platform", "A development and bug tracking platform", ids["admin"],
	).Scan(&projectID)
	if err != nil {
		return false, fmt.Errorf("insert project: %w", err)
	}

	tasks := []struct {
		title, description, status, priority string
		creator                               string
	}{
		{"Implement User Authentication", "Create JWT-based authentication system", "done", "high", "manager"},
		{"Design Dashboard UI", "Create responsive dashboard with analytics", "in_progress", "medium", "manager"},
		{"Setup WebSocket Communication", "Implement real-time updates via WebSockets", "todo", "high", "admin"},
	}
	for _, t := range tasks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (title, description, status, priority, project_id, assigned_to, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.title, t.description, t.status, t.priority, projectID, ids["developer"], ids[t.creator],
		)
		if err != nil {
			return false, fmt.Errorf("insert task: %w", err)
		}
	}

	bugs := []struct{ title, description, severity, status string }{
		{"Login form validation error", "Password field doesn't validate minimum length", "medium", "open"},
		{"Dashboard charts not responsive", "Analytics charts break on mobile devices", "low", "fixed"},
	}
	for _, b := range bugs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bugs (title, description, severity, status, project_id, assigned_to, reported_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.title, b.description, b.severity, b.status, projectID, ids["developer"], ids["tester"],
		)
		if err != nil {
			return false, fmt.Errorf("insert bug: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}
