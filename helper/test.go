package helper

import (
	"context"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseName     = "database"
	testDatabaseUser     = "user"
	testDatabasePassword = "password"
)

// MustStartPostgresContainer starts a PostgreSQL container for tests and
// examples. It returns the teardown function and the mapped host port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(
		ctx,
		"postgres:17-alpine",
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", NewError("start postgres container", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, "", NewError("get mapped port", err)
	}

	return pgContainer.Terminate, port.Port(), nil
}

// RunWithPostgres starts a container, stores its port in port, runs the
// package tests and tears the container down. It returns the exit code for
// os.Exit.
func RunWithPostgres(m *testing.M, port *string) int {
	teardown, mapped, err := MustStartPostgresContainer()
	if err != nil {
		log.Printf("error starting postgres container: %v", err)
		return 1
	}
	*port = mapped

	code := m.Run()

	if err := teardown(context.Background()); err != nil {
		log.Printf("error tearing down postgres container: %v", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// SetTestDatabaseConfigEnvs points NewDatabaseConfiguration at the test container.
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	t.Setenv(EnvDatabaseHost, "localhost")
	t.Setenv(EnvDatabasePort, port)
	t.Setenv(EnvDatabaseName, testDatabaseName)
	t.Setenv(EnvDatabaseUsername, testDatabaseUser)
	t.Setenv(EnvDatabasePassword, testDatabasePassword)
	t.Setenv(EnvDatabaseSchema, "public")
	t.Setenv(EnvDatabaseSSLMode, "disable")
}

// NewTestDatabase connects to the test container and panics on failure.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := NewDatabase("test", config, logger)
	if err != nil {
		panic(err)
	}
	return db
}
