package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/newsdesk/errors"
)

func TestOpen(t *testing.T) {
	t.Run("applies pragmas on every connection", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer db.Close()
		db.SetMaxOpenConns(3)

		for i := 0; i < 3; i++ {
			var journalMode string
			require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
			assert.Equal(t, "wal", journalMode)

			var foreignKeys int
			require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
			assert.Equal(t, 1, foreignKeys)

			var busyTimeout int
			require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
			assert.Equal(t, 5000, busyTimeout)
		}
	})

	t.Run("wraps errors with a stack trace", func(t *testing.T) {
		missingDir := filepath.Join(t.TempDir(), "does", "not", "exist")

		_, err := Open(filepath.Join(missingDir, "test.db"), nil)
		require.Error(t, err)
		assert.Contains(t, fmt.Sprintf("%+v", err), "connection.go")
	})
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/news.db")
	assert.Contains(t, dsn, "file:/tmp/news.db?")
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_busy_timeout=5000")
}

func TestOpenWithMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(path, nil)
	require.NoError(t, err)
	db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database file should exist")
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(ErrDatabaseClosed))
	assert.True(t, IsDatabaseClosed(errors.Wrap(ErrDatabaseClosed, "checkpoint")))
	assert.True(t, IsDatabaseClosed(errors.New("sql: database is closed")))
	assert.False(t, IsDatabaseClosed(errors.New("disk I/O error")))
}
