package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLSlots stores slots in the "slots" table created by db.InitSQLite.
type SQLSlots struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// now is overridable in tests.
	now func() time.Time
}

// NewSQLSlots creates a SQLSlots with the given database connection.
func NewSQLSlots(db *sql.DB) *SQLSlots {
	return &SQLSlots{DB: db, now: time.Now}
}

// Get implements Slots.
func (s *SQLSlots) Get(ctx context.Context, slot string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM slots WHERE name = ?`, slot,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get slot %s: %w", slot, err)
	}
	return value, true, nil
}

// Put implements Slots. All values are written in one transaction.
func (s *SQLSlots) Put(ctx context.Context, values map[string]string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ts := s.now().Unix()
	for name, value := range values {
		if _, err := stmt.ExecContext(ctx, name, value, ts); err != nil {
			return fmt.Errorf("put slot %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Delete implements Slots.
func (s *SQLSlots) Delete(ctx context.Context, names ...string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, name); err != nil {
			return fmt.Errorf("delete slot %s: %w", name, err)
		}
	}
	return tx.Commit()
}
