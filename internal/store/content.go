// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"proposepress/internal/models"
)

// contentColumns is the column list shared by every content query; it
// matches the scan order in scanContent.
const contentColumns = `id, type, title, slug, body, excerpt, status,
	author_id, date, date_gmt, created_at, updated_at`

// ContentStore handles all content-related database operations.
// It serves both posts and pages through the unified content table.
type ContentStore struct {
	db *sql.DB
}

// NewContentStore creates a new ContentStore with the given database connection.
func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner, c *models.Content) error {
	return row.Scan(
		&c.ID, &c.Type, &c.Title, &c.Slug, &c.Body, &c.Excerpt, &c.Status,
		&c.AuthorID, &c.Date, &c.DateGMT, &c.CreatedAt, &c.UpdatedAt,
	)
}

// wallClock drops the zone from t while keeping its clock reading, which is
// how the local date is stored in the TIMESTAMP column.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func (s *ContentStore) list(query string, args ...any) ([]models.Content, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Content
	for rows.Next() {
		var c models.Content
		if err := scanContent(rows, &c); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// ListByType returns all content items of the given type, ordered by creation date descending.
func (s *ContentStore) ListByType(contentType models.ContentType) ([]models.Content, error) {
	items, err := s.list(`
		SELECT `+contentColumns+`
		FROM content
		WHERE type = $1
		ORDER BY created_at DESC
	`, contentType)
	if err != nil {
		return nil, fmt.Errorf("list content by type: %w", err)
	}
	return items, nil
}

// ListByAuthor returns the content of one type written by a single user.
// Used for contributors, who only see their own drafts.
func (s *ContentStore) ListByAuthor(contentType models.ContentType, authorID uuid.UUID) ([]models.Content, error) {
	items, err := s.list(`
		SELECT `+contentColumns+`
		FROM content
		WHERE type = $1 AND author_id = $2
		ORDER BY created_at DESC
	`, contentType, authorID)
	if err != nil {
		return nil, fmt.Errorf("list content by author: %w", err)
	}
	return items, nil
}

// FindByID retrieves a content item by its UUID. Returns nil if not found.
func (s *ContentStore) FindByID(id uuid.UUID) (*models.Content, error) {
	c := &models.Content{}
	err := scanContent(s.db.QueryRow(`
		SELECT `+contentColumns+`
		FROM content WHERE id = $1
	`, id), c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content by id: %w", err)
	}
	return c, nil
}

// FindBySlug retrieves a published content item by its slug. Used for public page rendering.
func (s *ContentStore) FindBySlug(slug string) (*models.Content, error) {
	c := &models.Content{}
	err := scanContent(s.db.QueryRow(`
		SELECT `+contentColumns+`
		FROM content WHERE slug = $1 AND status = 'publish'
	`, slug), c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content by slug: %w", err)
	}
	return c, nil
}

// Create inserts a new content item and returns it with the generated ID.
// Dates are stored as given; the save pipeline decides them.
func (s *ContentStore) Create(c *models.Content) (*models.Content, error) {
	result := &models.Content{}
	err := scanContent(s.db.QueryRow(`
		INSERT INTO content (type, title, slug, body, excerpt, status,
		                     author_id, date, date_gmt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+contentColumns,
		c.Type, c.Title, c.Slug, c.Body, c.Excerpt, c.Status,
		c.AuthorID, wallClock(c.Date), c.DateGMT,
	), result)
	if err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	return result, nil
}

// Update modifies an existing content item.
func (s *ContentStore) Update(c *models.Content) error {
	_, err := s.db.Exec(`
		UPDATE content SET
			type = $1, title = $2, slug = $3, body = $4, excerpt = $5,
			status = $6, date = $7, date_gmt = $8, updated_at = NOW()
		WHERE id = $9
	`, c.Type, c.Title, c.Slug, c.Body, c.Excerpt,
		c.Status, wallClock(c.Date), c.DateGMT, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return nil
}

// Delete removes a content item by ID. Its meta rows go with it.
func (s *ContentStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM content WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

// ListPublishedByType returns all published content of the given type,
// ordered by publish date descending. Used for public page rendering.
func (s *ContentStore) ListPublishedByType(contentType models.ContentType) ([]models.Content, error) {
	items, err := s.list(`
		SELECT `+contentColumns+`
		FROM content
		WHERE type = $1 AND status = 'publish'
		ORDER BY date_gmt DESC NULLS LAST
	`, contentType)
	if err != nil {
		return nil, fmt.Errorf("list published content: %w", err)
	}
	return items, nil
}

// ListDue returns scheduled content whose GMT date has passed.
func (s *ContentStore) ListDue(now time.Time) ([]models.Content, error) {
	items, err := s.list(`
		SELECT `+contentColumns+`
		FROM content
		WHERE status = 'future' AND date_gmt <= $1
		ORDER BY date_gmt ASC
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due content: %w", err)
	}
	return items, nil
}

// CountByType returns the number of content items of the given type.
func (s *ContentStore) CountByType(contentType models.ContentType) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM content WHERE type = $1`, contentType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return count, nil
}
