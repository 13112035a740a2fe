// Package testutil holds helpers for tests that need a real MySQL server.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/concert-reservation/internal/database"
)

// NewTestDB opens the database named by TEST_MYSQL_DSN, applies the
// embedded migrations and empties every table.  The test is skipped when
// the variable is unset or the server is unreachable.  The DSN must set
// parseTime=true.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set; skipping MySQL integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("skipping MySQL integration test: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	TruncateAll(t, ctx, db)
	return db
}

// TruncateAll removes all rows from the application tables.
func TruncateAll(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	for _, stmt := range []string{`DELETE FROM history`, `DELETE FROM concerts`, `DELETE FROM users`} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
}

// InsertUser seeds a user row and returns its id.
func InsertUser(t *testing.T, ctx context.Context, db *sql.DB, id uint64, name string) uint64 {
	t.Helper()
	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, user_name) VALUES (?, ?)`, id, name); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}
