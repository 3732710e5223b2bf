//go:build integration

package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andresuchdata/sports-etl/internal/config"
	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/andresuchdata/sports-etl/internal/service"
	"github.com/rs/zerolog"
)

const (
	minioAccessKey = "minioadmin"
	minioSecretKey = "minioadmin"
	pgPassword     = "postgres"
)

const leaguesPayload = `{"leagues":[
	{"idLeague":"4328","strLeague":"English Premier League","strSport":"Soccer"},
	{"idLeague":"4391","strLeague":"NFL","strSport":"American Football"}
]}`

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() { c.Terminate(context.Background()) })
	return c
}

func startMinio(t *testing.T, ctx context.Context) string {
	c := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioAccessKey,
			"MINIO_ROOT_PASSWORD": minioSecretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func startPostgres(t *testing.T, ctx context.Context) string {
	c := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       "sports",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(2 * time.Minute),
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://postgres:%s@%s:%s/sports?sslmode=disable", pgPassword, host, port.Port())
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE sports_data (
		id SERIAL PRIMARY KEY,
		league_id VARCHAR(50) NOT NULL,
		league_name VARCHAR(255),
		sport VARCHAR(100)
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return dsn
}

func TestIntegrationFetchLoadProbe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(leaguesPayload))
	}))
	defer srv.Close()

	endpoint := startMinio(t, ctx)
	dsn := startPostgres(t, ctx)

	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			cfg := &config.Config{
				Source: config.SourceConfig{URL: srv.URL, Timeout: 10 * time.Second},
				Storage: config.StorageConfig{
					Driver:    "minio",
					Endpoint:  "http://" + endpoint,
					AccessKey: minioAccessKey,
					SecretKey: minioSecretKey,
					Bucket:    "raw-data-" + driver,
					ObjectKey: "sports_data.json",
				},
				Database: config.DatabaseConfig{Driver: driver, DSN: dsn, Table: "sports_data"},
				App:      config.AppConfig{DataDir: filepath.Join(dir, "2_data")},
			}

			p, err := service.NewPipeline(ctx, cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewPipeline: %v", err)
			}
			defer p.Close()

			reports, err := p.TriggerSequence(ctx, domain.StageProbe, domain.StageFetch, domain.StageLoad)
			if err != nil {
				t.Fatalf("TriggerSequence: %v", err)
			}
			if len(reports) != 3 {
				t.Fatalf("expected 3 reports, got %d", len(reports))
			}
			for _, r := range reports {
				if !r.Succeeded() {
					t.Fatalf("stage %s failed: %s", r.Stage, r.Error)
				}
			}
			if reports[2].Rows != 2 {
				t.Errorf("expected 2 rows loaded, got %d", reports[2].Rows)
			}
		})
	}

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM sports_data WHERE league_name = 'NFL'`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected one NFL row per driver run, got %d", count)
	}
}
