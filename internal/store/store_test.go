package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"proposepress/internal/database"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB connects to the Postgres named by the POSTGRES_* variables
// (docker-compose defaults), migrates it and closes it after the test.
// The test is skipped when the database is unreachable.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "postgres://" + envOr("POSTGRES_USER", "proposepress") + ":" + envOr("POSTGRES_PASSWORD", "changeme") +
		"@" + envOr("POSTGRES_HOST", "localhost") + ":" + envOr("POSTGRES_PORT", "5432") +
		"/" + envOr("POSTGRES_DB", "proposepress") + "?sslmode=disable"

	db, err := database.Connect(context.Background(), dsn)
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
	}
	if _, err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func cleanUsers(t *testing.T, db *sql.DB, emails ...string) {
	t.Helper()
	for _, email := range emails {
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}

func cleanContent(t *testing.T, db *sql.DB, slugs ...string) {
	t.Helper()
	for _, slug := range slugs {
		db.Exec("DELETE FROM content WHERE slug = $1", slug)
	}
}
