package test_utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/tuckerworks/calsync/internal/config"
	"github.com/tuckerworks/calsync/internal/database"
)

const (
	dbName     = "calsync"
	dbUser     = "test_calsync"
	dbPassword = "test_calsync"
)

// TestWithDB starts a Postgres container and applies all migrations. It
// returns an error when no container runtime is available, so callers can
// skip their database tests.
func TestWithDB() (pool *pgxpool.Pool, cleanup func(), err error) {
	ctx := context.Background()
	// testcontainers panics when it cannot locate a Docker host.
	defer func() {
		if r := recover(); r != nil {
			pool, cleanup, err = nil, nil, fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find project root: %v", err)
	}

	container, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithInitScripts(filepath.Join(projectRoot, "dev", "init.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	terminate := func() {
		if err := container.Terminate(ctx); err != nil {
			log.Warnf("Failed to terminate postgres container: %v", err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		terminate()
		return nil, nil, err
	}
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Enabled: true,
		Host:    host,
		Port:    port.Int(),
		User:    dbUser,
		Pass:    dbPassword,
		Name:    dbName,
		Schema:  "calsync",
	}
	if err := database.Migrate(cfg); err != nil {
		terminate()
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	pool, err = database.Open(ctx, cfg)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

// findProjectRoot walks up from the working directory to the directory holding go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}
