// Package helpers contains shared infrastructure for Castor's
// integration tests. These tests require a local Docker daemon and are
// skipped in environments without one (testing.Short).
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/castorhq/castor/internal/database"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	databaseUser     = "castor"
	databasePassword = "castor"
	databaseName     = "CASTOR_TEST_DB"
)

var ctx = context.Background()

// ProvisionDatabase spins up a disposable Postgres container, connects
// Castor's database manager to it (which also applies the embedded goose
// migrations), and tears the container down when the test finishes.
func ProvisionDatabase(t *testing.T) database.Manager {
	if testing.Short() {
		t.Skip("skipping integration test requiring Docker")
	}

	postgresC, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:14.1-alpine"),
		postgres.WithDatabase(databaseName),
		postgres.WithUsername(databaseUser),
		postgres.WithPassword(databasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}

	t.Cleanup(func() {
		timeout := 5 * time.Second
		if err := postgresC.Stop(ctx, &timeout); err != nil {
			t.Logf("WARNING: failed to stop postgres container: %s", err)
		}
	})

	host, err := postgresC.Host(ctx)
	if err != nil {
		t.Fatalf("failed to determine postgres container host: %s", err)
	}

	port, err := postgresC.MappedPort(ctx, nat.Port("5432/tcp"))
	if err != nil {
		t.Fatalf("failed to determine postgres container port: %s", err)
	}

	db := database.New()
	if err := db.Connect(database.DatabaseConfig{
		User:     databaseUser,
		Password: databasePassword,
		Name:     databaseName,
		Host:     host,
		Port:     port.Port(),
	}); err != nil {
		t.Fatalf("failed to connect to provisioned database: %s", err)
	}

	return db
}
