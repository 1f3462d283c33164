// Package testutil provides disposable PostgreSQL and Redis instances and
// loan fixtures for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const templateDB = "loan_engine_template"

// server is one migrated Postgres container shared by every test of the
// package binary. Ryuk removes it when the binary exits.
type server struct {
	once    sync.Once
	admin   *sql.DB
	baseURL *url.URL
	err     error
}

var shared server

// SetupTestDB returns a connection to a fresh database cloned from the
// migrated template. Integration tests are skipped with -short.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}

	shared.once.Do(func() { shared.err = shared.start(context.Background()) })
	if shared.err != nil {
		t.Fatalf("start postgres: %v", shared.err)
	}

	name := "loan_engine_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := shared.admin.Exec(fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", name, templateDB)); err != nil {
		t.Fatalf("create test database: %v", err)
	}

	dsn := *shared.baseURL
	dsn.Path = "/" + name
	db, err := sql.Open("postgres", dsn.String())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if _, err := shared.admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", name)); err != nil {
			t.Logf("drop test database %s: %v", name, err)
		}
	})
	return db
}

func (s *server) start(ctx context.Context) error {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("postgres"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("run container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}
	s.baseURL, err = url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}

	s.admin, err = sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	if _, err := s.admin.ExecContext(ctx, "CREATE DATABASE "+templateDB); err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	tmplURL := *s.baseURL
	tmplURL.Path = "/" + templateDB
	tmpl, err := sql.Open("postgres", tmplURL.String())
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer tmpl.Close()

	if err := migrate(ctx, tmpl, findMigrationsDir()); err != nil {
		return err
	}
	// CREATE DATABASE ... TEMPLATE fails while the template has sessions.
	return tmpl.Close()
}

// migrate applies every *.up.sql in dir in name order inside one
// transaction.
func migrate(ctx context.Context, db *sql.DB, dir string) error {
	ups, err := fs.Glob(os.DirFS(dir), "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(ups) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	slices.Sort(ups)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer tx.Rollback()

	for _, f := range ups {
		content, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", f, err)
		}
	}
	return tx.Commit()
}

// findMigrationsDir walks up from the package under test to the module's
// migrations directory.
func findMigrationsDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for range 10 {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return "migrations"
}
