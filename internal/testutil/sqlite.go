package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/userauth/internal/db"
	"github.com/nkiryanov/userauth/internal/repository"
	"github.com/nkiryanov/userauth/internal/repository/sqlite"
)

// Open in-memory sqlite storage with applied migrations
// Every call gives a new empty database, closed when test stops
func NewSQLiteStorage(t *testing.T) repository.Storage {
	t.Helper()

	conn, err := db.ConnectSQLite(t.Context(), db.SQLiteScheme+":memory:")
	require.NoError(t, err, "Error happened when opening in-memory sqlite")
	t.Cleanup(func() { _ = conn.Close() })

	return sqlite.NewStorage(conn)
}
