//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"loans-service/internal/infra/db"
	"loans-service/internal/pkg/config"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	postgresOnce      sync.Once
	postgresContainer testcontainers.Container

	redisOnce      sync.Once
	redisContainer testcontainers.Container

	testUser     = "test"
	testPassword = "testpass"
)

type containerInfo struct {
	Host string
	Port nat.Port
}

func startGenericContainer(req testcontainers.ContainerRequest, timeout time.Duration) (testcontainers.Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func containerHostPort(c testcontainers.Container, port nat.Port) (containerInfo, error) {
	ctx := context.Background()
	host, err := c.Host(ctx)
	if err != nil {
		return containerInfo{}, err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return containerInfo{}, err
	}
	return containerInfo{Host: host, Port: mapped}, nil
}

func startPostgres(t *testing.T) containerInfo {
	t.Helper()
	postgresOnce.Do(func() {
		req := testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       "postgres",
			},
			Tmpfs: map[string]string{
				"/var/lib/postgresql/data": "rw,size=256m",
			},
			Cmd: []string{
				"postgres",
				"-c", "fsync=off",
				"-c", "synchronous_commit=off",
			},
			WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
					testUser, testPassword, host, port.Port())
			}).WithStartupTimeout(60 * time.Second),
			Labels: map[string]string{"purpose": "e2e-tests"},
		}
		var err error
		postgresContainer, err = startGenericContainer(req, 90*time.Second)
		if err != nil {
			panic(fmt.Sprintf("failed to start postgres container: %v", err))
		}
	})

	info, err := containerHostPort(postgresContainer, "5432/tcp")
	require.NoError(t, err)
	return info
}

func startRedis(t *testing.T) containerInfo {
	t.Helper()
	redisOnce.Do(func() {
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
			Labels:       map[string]string{"purpose": "e2e-tests"},
		}
		var err error
		redisContainer, err = startGenericContainer(req, 60*time.Second)
		if err != nil {
			panic(fmt.Sprintf("failed to start redis container: %v", err))
		}
	})

	info, err := containerHostPort(redisContainer, "6379/tcp")
	require.NoError(t, err)
	return info
}

// setupDatabase creates an isolated database per test process and applies
// the schema.
func setupDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	info := startPostgres(t)

	dbName := "testdb_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	adminDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
		testUser, testPassword, info.Host, info.Port.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	adminPool, err := pgxpool.New(ctx, adminDSN)
	require.NoError(t, err)
	defer adminPool.Close()

	_, err = adminPool.Exec(ctx, "CREATE DATABASE "+dbName)
	require.NoError(t, err)

	cfg := config.DBConfig{
		Host:     info.Host,
		Port:     info.Port.Port(),
		User:     testUser,
		Password: testPassword,
		DBName:   dbName,
		SSLMode:  "disable",
	}

	pool, cleanup, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx, pool))

	t.Cleanup(func() {
		cleanup()

		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		dropPool, err := pgxpool.New(dropCtx, adminDSN)
		if err != nil {
			return
		}
		defer dropPool.Close()
		_, _ = dropPool.Exec(dropCtx, "DROP DATABASE IF EXISTS "+dbName)
	})

	return pool
}

// setupRedis returns a client against the shared redis container. The db is
// flushed before each test.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	info := startRedis(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: info.Host + ":" + info.Port.Port(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	require.NoError(t, rdb.FlushDB(ctx).Err())

	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
