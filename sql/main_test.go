package sql

import (
	"os"
	"testing"

	"github.com/siherrmann/kgraph/helper"
	"github.com/stretchr/testify/require"
)

var dbPort string

func TestMain(m *testing.M) {
	os.Exit(helper.RunWithPostgres(m, &dbPort))
}

// initDB connects to the test container with the pg_trgm extension loaded.
// The connection is closed when the test ends.
func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	database := helper.NewTestDatabase(dbConfig)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, Init(database.Instance), "failed to initialize extensions")
	return database
}
