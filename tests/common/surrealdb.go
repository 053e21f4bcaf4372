// Package common holds shared test infrastructure.
package common

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	appcommon "github.com/bobmcallan/tickercal/internal/common"
)

const (
	surrealImage = "surrealdb/surrealdb:v3.0.0"
	surrealUser  = "root"
	surrealPass  = "root"
)

// SurrealDB is a process-wide SurrealDB container shared by every test.
type SurrealDB struct {
	container testcontainers.Container
	address   string
}

var (
	sharedOnce sync.Once
	shared     *SurrealDB
	sharedErr  error
)

// StartSurrealDB returns the shared container, starting it on first use. The
// test is skipped in -short mode or when no container runtime is reachable.
func StartSurrealDB(t *testing.T) *SurrealDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping SurrealDB container test in short mode")
	}

	sharedOnce.Do(func() {
		shared, sharedErr = recoverStart(context.Background(), startSurrealDB)
	})
	if sharedErr != nil {
		t.Skipf("SurrealDB container unavailable: %v", sharedErr)
	}
	return shared
}

// recoverStart runs start, turning a panic into an error. testcontainers
// panics rather than erroring when it finds no Docker host.
func recoverStart(ctx context.Context, start func(context.Context) (*SurrealDB, error)) (db *SurrealDB, err error) {
	defer func() {
		if r := recover(); r != nil {
			db, err = nil, fmt.Errorf("container runtime: %v", r)
		}
	}()
	return start(ctx)
}

func startSurrealDB(ctx context.Context) (*SurrealDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        surrealImage,
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", surrealUser, "--pass", surrealPass},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "ws")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	return &SurrealDB{container: container, address: endpoint + "/rpc"}, nil
}

// Config returns connection settings for a database private to the calling
// test, inside the shared tickercal_test namespace.
func (s *SurrealDB) Config(t *testing.T) appcommon.SurrealDBConfig {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name())
	return appcommon.SurrealDBConfig{
		Address:   s.address,
		Namespace: "tickercal_test",
		Database:  fmt.Sprintf("t_%s_%d", name, time.Now().UnixNano()%100000),
		Username:  surrealUser,
		Password:  surrealPass,
	}
}

// Terminate stops the container. Intended for TestMain.
func (s *SurrealDB) Terminate() {
	if s != nil && s.container != nil {
		s.container.Terminate(context.Background())
	}
}
