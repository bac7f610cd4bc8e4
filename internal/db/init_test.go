package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/devtrack/internal/db"
)

func TestInitPostgres_FailsBeforeSchema(t *testing.T) {
	for name, dsn := range map[string]string{
		"unknown parameter": "sslmode=disable bogus_option=1 host=127.0.0.1 port=1",
		"closed port":       "postgres://devtrack@127.0.0.1:1/devtrack?sslmode=disable&connect_timeout=1",
	} {
		t.Run(name, func(t *testing.T) {
			conn, err := db.InitPostgres(dsn)
			require.Error(t, err)
			assert.Nil(t, conn)
			assert.Contains(t, err.Error(), "ping postgres")
		})
	}
}

func TestInitSQLite_CreatesSlotsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	sqlDB, err := db.InitSQLite(path)
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = sqlDB.Exec(`INSERT INTO slots (name, value, updated_at) VALUES ('token', 'x', 1)`)
	require.NoError(t, err, "slots table not usable")

	again, err := db.InitSQLite(path)
	require.NoError(t, err, "schema bootstrap must be repeatable")
	_ = again.Close()
}
