package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// seedUser is a development account created on first start.
type seedUser struct {
	email, password, name, role string
}

// seedUsers covers one account per interesting capability level: the admin
// publishes, the contributor can only propose a date.
var seedUsers = []seedUser{
	{"admin@proposepress.local", "admin", "Admin", "admin"},
	{"editor@proposepress.local", "editor", "Editor", "editor"},
	{"contributor@proposepress.local", "contributor", "Contributor", "contributor"},
}

// Seed populates the database with initial development data.
// It creates the default users and a sample draft if no users exist. Users
// are prompted to set up 2FA on first login (totp_enabled = false).
func Seed(db *sql.DB) error {
	// Check if any users exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	var contributorID string
	for _, u := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed bcrypt: %w", err)
		}

		var id string
		err = db.QueryRow(`
			INSERT INTO users (email, password_hash, display_name, role, totp_enabled)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, u.email, string(hash), u.name, u.role, false).Scan(&id)
		if err != nil {
			return fmt.Errorf("seed insert %s: %w", u.role, err)
		}
		if u.role == "contributor" {
			contributorID = id
		}

		slog.Info("seeded user", "email", u.email, "password", u.password, "role", u.role)
	}

	_, err := db.Exec(`
		INSERT INTO content (type, title, slug, body, status, author_id)
		VALUES ('post', 'Hello from a contributor', 'hello-from-a-contributor',
		        'This draft is waiting for an editor.', 'draft', $1)
	`, contributorID)
	if err != nil {
		return fmt.Errorf("seed insert draft: %w", err)
	}

	return nil
}
