package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// MetaStore reads and writes the single-valued content_meta rows.
type MetaStore struct {
	db *sql.DB
}

// NewMetaStore creates a new MetaStore with the given database connection.
func NewMetaStore(db *sql.DB) *MetaStore {
	return &MetaStore{db: db}
}

// Get returns the value stored under key. The boolean is false when no row
// exists, which is different from a stored empty string.
func (s *MetaStore) Get(contentID uuid.UUID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`
		SELECT meta_value FROM content_meta
		WHERE content_id = $1 AND meta_key = $2
	`, contentID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get content meta: %w", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *MetaStore) Set(contentID uuid.UUID, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO content_meta (content_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
	`, contentID, key, value)
	if err != nil {
		return fmt.Errorf("set content meta: %w", err)
	}
	return nil
}

// Delete removes key from the item. Deleting a missing key is not an error.
func (s *MetaStore) Delete(contentID uuid.UUID, key string) error {
	_, err := s.db.Exec(`
		DELETE FROM content_meta WHERE content_id = $1 AND meta_key = $2
	`, contentID, key)
	if err != nil {
		return fmt.Errorf("delete content meta: %w", err)
	}
	return nil
}

// All returns every meta value of an item keyed by name.
func (s *MetaStore) All(contentID uuid.UUID) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT meta_key, meta_value FROM content_meta WHERE content_id = $1
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list content meta: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan content meta: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
