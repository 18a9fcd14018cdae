package sqlite_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clayloft/kilncat"
	"github.com/clayloft/kilncat/database/sqlite"

	_ "modernc.org/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestRepo creates a repo with unique table names for test isolation
func setupTestRepo(t *testing.T) *sqlite.Repo {
	t.Helper()

	ctx := context.Background()

	suffix := getRandomString(t)
	tables := kilncat.Tables{
		Items:    fmt.Sprintf("items_%s", suffix),
		Photos:   fmt.Sprintf("photos_%s", suffix),
		Profiles: fmt.Sprintf("profiles_%s", suffix),
	}

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = db.Close() })

	// In-memory SQLite is per connection; keep the pool on one.
	db.SetMaxOpenConns(1)

	require.NoError(t, sqlite.Migrate(ctx, db, tables), "migrate")
	require.NoError(t, sqlite.ValidateSchema(ctx, db, tables), "validate schema")

	repo, err := sqlite.NewRepo(db, tables)
	require.NoError(t, err, "new repo")
	return repo
}
