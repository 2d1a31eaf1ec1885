//go:build integration

// Package testinfra starts throwaway backing services for integration tests.
//
// Usage:
//
//	go test -tags integration ./internal/infrastructure/...
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultPostgresImage = "postgres:16-alpine"
	DefaultRedisImage    = "redis:7-alpine"
	DefaultNATSImage     = "nats:2.10-alpine"
)

// SkipIfNoDocker skips the test if Docker is not available.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !IsDockerAvailable() {
		t.Skip("Skipping test: Docker not available")
	}
}

// IsDockerAvailable checks if Docker daemon is running and accessible.
func IsDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

// Service is a started container plus the address tests should dial.
type Service struct {
	Container testcontainers.Container
	URL       string
}

// Terminate stops the container, logging failures.
func (s *Service) Terminate(t *testing.T) {
	t.Helper()
	if s == nil || s.Container == nil {
		return
	}
	if err := s.Container.Terminate(context.Background()); err != nil {
		t.Logf("Warning: failed to terminate container: %v", err)
	}
}

// StartPostgres runs a disposable Postgres and returns its connection URL.
func StartPostgres(t *testing.T) *Service {
	t.Helper()
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        DefaultPostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "completion",
			"POSTGRES_PASSWORD": "completion",
			"POSTGRES_DB":       "completion",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(90 * time.Second),
	}

	svc := start(ctx, t, req, "5432/tcp", func(host, port string) string {
		return fmt.Sprintf("postgres://completion:completion@%s:%s/completion?sslmode=disable", host, port)
	})
	t.Cleanup(func() { svc.Terminate(t) })
	return svc
}

// StartRedis runs a disposable Redis and returns its address.
func StartRedis(t *testing.T) *Service {
	t.Helper()
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        DefaultRedisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}

	svc := start(ctx, t, req, "6379/tcp", func(host, port string) string {
		return host + ":" + port
	})
	t.Cleanup(func() { svc.Terminate(t) })
	return svc
}

// StartNATS runs a disposable NATS server with JetStream enabled.
func StartNATS(t *testing.T) *Service {
	t.Helper()
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        DefaultNATSImage,
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
	}

	svc := start(ctx, t, req, "4222/tcp", func(host, port string) string {
		return fmt.Sprintf("nats://%s:%s", host, port)
	})
	t.Cleanup(func() { svc.Terminate(t) })
	return svc
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port, url func(host, port string) string) *Service {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("Failed to resolve container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = container.Terminate(context.Background())
		t.Fatalf("Failed to resolve mapped port: %v", err)
	}

	return &Service{Container: container, URL: url(host, mapped.Port())}
}
