package testing

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/2beens/setpad/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
)

const TestDBName = "setpad"

// Postgres is a throwaway postgres container with the setpad schema applied.
type Postgres struct {
	Pool *pgxpool.Pool
	Host string
	Port string
}

// StartPostgres runs a postgres container for the duration of the test (or
// suite, when t belongs to a suite's SetupSuite) and returns a pool to it.
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()

	dockerPool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not create new dockertest pool")
	require.NoError(t, dockerPool.Client.Ping(), "could not ping dockertest pool")
	dockerPool.MaxWait = 90 * time.Second

	resource, err := dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=" + TestDBName,
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	require.NoError(t, err, "dockerpool run postgres")
	t.Cleanup(func() {
		if err := dockerPool.Purge(resource); err != nil {
			t.Logf("postgres teardown: %s", err)
		}
	})

	pg := &Postgres{
		Host: "localhost",
		Port: resource.GetPort("5432/tcp"),
	}

	// wait until postgres accepts connections
	dsn := fmt.Sprintf("postgres://postgres@%s:%s/%s?sslmode=disable", pg.Host, pg.Port, TestDBName)
	require.NoError(t, dockerPool.Retry(func() error {
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		return sqlDB.Ping()
	}), "connect to postgres")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg.Pool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: pg.Host,
		DBPort: pg.Port,
		DBName: TestDBName,
	})
	require.NoError(t, err)
	t.Cleanup(pg.Pool.Close)

	require.NoError(t, db.EnsureSchema(ctx, pg.Pool))
	return pg
}

// Truncate removes all workouts, with their exercises and sets.
func (pg *Postgres) Truncate(t *testing.T) {
	t.Helper()
	_, err := pg.Pool.Exec(context.Background(), `TRUNCATE workout CASCADE`)
	require.NoError(t, err)
}
