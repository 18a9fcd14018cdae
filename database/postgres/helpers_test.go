package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/clayloft/kilncat"
	"github.com/clayloft/kilncat/database/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testCleanup  func()
)

// getSharedTestDatabase returns a shared database pool for all tests.
// Requires a container runtime; set KILNCAT_TEST_POSTGRES=1 to enable.
func getSharedTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("KILNCAT_TEST_POSTGRES") == "" {
		t.Skip("postgres tests disabled; set KILNCAT_TEST_POSTGRES=1 to run")
	}

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}

		testCleanup = func() {
			if testPool != nil {
				testPool.Close()
			}
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %s", err)
			}
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			testCleanup()
			t.Fatalf("failed to get connection string: %v", err)
		}

		pool, err := pgxpool.New(ctx, connectionStr)
		if err != nil {
			testCleanup()
			t.Fatalf("could not connect to database: %v", err)
		}

		testPool = pool
	})

	return testPool
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestRepo creates a repo with unique table names for test isolation.
func setupTestRepo(t *testing.T) *postgres.Repo {
	t.Helper()

	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	suffix := getRandomString(t)
	tables := kilncat.Tables{
		Items:    fmt.Sprintf("items_%s", suffix),
		Photos:   fmt.Sprintf("photos_%s", suffix),
		Profiles: fmt.Sprintf("profiles_%s", suffix),
	}

	require.NoError(t, postgres.Migrate(ctx, pool, tables), "migrate")
	require.NoError(t, postgres.ValidateSchema(ctx, pool, tables), "validate schema")

	t.Cleanup(func() {
		_ = postgres.DropTables(ctx, pool, tables)
	})

	repo, err := postgres.NewRepo(pool, tables)
	require.NoError(t, err, "new repo")
	return repo
}
