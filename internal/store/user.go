// Package store provides database access methods for all ProposePress
// entities. Each store struct wraps a *sql.DB and exposes typed query methods.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"proposepress/internal/models"
)

var (
	// ErrEmailTaken is returned by Create when another user has the email.
	ErrEmailTaken = errors.New("email already in use")

	// ErrUserNotFound is returned by updates aimed at a missing user.
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, email, password_hash, display_name, role, totp_secret, totp_enabled, created_at, updated_at`

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// dummyHash is compared against when no user matched, so a login for an
// unknown email costs the same bcrypt round as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("proposepress"), bcrypt.DefaultCost)

// UserStore handles user accounts.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row rowScanner, u *models.User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role,
		&u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
}

// NormalizeEmail trims and lowercases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserStore) findOne(query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE `+query, arg), u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByEmail returns the user with email, matched case-insensitively.
// Returns nil if not found.
func (s *UserStore) FindByEmail(email string) (*models.User, error) {
	u, err := s.findOne(`email = $1`, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// FindByID returns the user with id. Returns nil if not found.
func (s *UserStore) FindByID(id uuid.UUID) (*models.User, error) {
	u, err := s.findOne(`id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, nil
}

// List returns all users, oldest first.
func (s *UserStore) List() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a user with a bcrypt-hashed password. A duplicate email
// yields ErrEmailTaken.
func (s *UserStore) Create(email, password, displayName string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{}
	err = scanUser(s.db.QueryRow(`
		INSERT INTO users (email, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		NormalizeEmail(email), string(hash), displayName, role), u)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, fmt.Errorf("create user %s: %w", email, ErrEmailTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// exec runs a single-user update and maps "no row touched" to
// ErrUserNotFound.
func (s *UserStore) exec(op string, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// SetTOTPSecret saves the TOTP secret offered during 2FA setup.
func (s *UserStore) SetTOTPSecret(userID uuid.UUID, secret string) error {
	return s.exec("set totp secret",
		`UPDATE users SET totp_secret = $1, updated_at = NOW() WHERE id = $2`, secret, userID)
}

// EnableTOTP marks 2FA active once the first code verified.
func (s *UserStore) EnableTOTP(userID uuid.UUID) error {
	return s.exec("enable totp",
		`UPDATE users SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1`, userID)
}

// ResetTOTP clears the secret so the user enrolls again at next login.
func (s *UserStore) ResetTOTP(userID uuid.UUID) error {
	return s.exec("reset totp",
		`UPDATE users SET totp_secret = NULL, totp_enabled = FALSE, updated_at = NOW() WHERE id = $1`, userID)
}

// CheckPassword verifies password against user's hash. A nil user still
// pays for one comparison and never matches.
func (s *UserStore) CheckPassword(user *models.User, password string) bool {
	if user == nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
