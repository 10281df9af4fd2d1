// Package meta declares the content meta fields the CMS knows about. A
// registered field carries its own authorization and sanitize callbacks,
// and only registered fields can be written through the admin or the API.
package meta

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"proposepress/internal/models"
)

var (
	// ErrNotRegistered is returned when a key is not declared for the
	// item's content type.
	ErrNotRegistered = errors.New("meta field not registered")
	// ErrForbidden is returned when the field's Authorize callback refuses
	// the user.
	ErrForbidden = errors.New("meta field write forbidden")
)

// Field describes one registered meta key.
type Field struct {
	Key         string
	Description string
	Single      bool
	Type        string // "string" is the only type stored today
	ShowInAPI   bool

	// Sanitize cleans a raw value before it is stored. Nil stores as-is.
	Sanitize func(string) string
	// Authorize decides whether user may write the field. Nil allows
	// anyone holding edit_posts.
	Authorize func(user *models.User) bool
}

// Storage is the persistence the registry writes through.
// *store.MetaStore satisfies it.
type Storage interface {
	Get(contentID uuid.UUID, key string) (string, bool, error)
	Set(contentID uuid.UUID, key, value string) error
	Delete(contentID uuid.UUID, key string) error
	All(contentID uuid.UUID) (map[string]string, error)
}

// Registry maps content types to their declared fields.
type Registry struct {
	mu     sync.RWMutex
	fields map[models.ContentType]map[string]Field
	store  Storage
}

// NewRegistry creates an empty registry backed by store.
func NewRegistry(store Storage) *Registry {
	return &Registry{
		fields: make(map[models.ContentType]map[string]Field),
		store:  store,
	}
}

// Register declares f for contentType, replacing an earlier declaration
// of the same key.
func (r *Registry) Register(contentType models.ContentType, f Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fields[contentType] == nil {
		r.fields[contentType] = make(map[string]Field)
	}
	r.fields[contentType][f.Key] = f
}

// Lookup returns the field declared under key for contentType.
func (r *Registry) Lookup(contentType models.ContentType, key string) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[contentType][key]
	return f, ok
}

// Fields lists the fields of a content type sorted by key.
func (r *Registry) Fields(contentType models.ContentType) []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Field, 0, len(r.fields[contentType]))
	for _, f := range r.fields[contentType] {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CanWrite reports whether user may write key on items of contentType.
func (r *Registry) CanWrite(user *models.User, contentType models.ContentType, key string) bool {
	f, ok := r.Lookup(contentType, key)
	if !ok {
		return false
	}
	return authorized(f, user)
}

func authorized(f Field, user *models.User) bool {
	if f.Authorize != nil {
		return f.Authorize(user)
	}
	return user.Can(models.CapEditPosts)
}

// Write authorizes, sanitizes and stores raw under key on item. It
// returns the stored value.
func (r *Registry) Write(user *models.User, item *models.Content, key, raw string) (string, error) {
	f, ok := r.Lookup(item.Type, key)
	if !ok {
		return "", fmt.Errorf("write %s on %s: %w", key, item.Type, ErrNotRegistered)
	}
	if !authorized(f, user) {
		return "", fmt.Errorf("write %s: %w", key, ErrForbidden)
	}

	value := raw
	if f.Sanitize != nil {
		value = f.Sanitize(raw)
	}
	if err := r.store.Set(item.ID, key, value); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return value, nil
}

// Read returns the stored value of a registered field.
func (r *Registry) Read(item *models.Content, key string) (string, bool, error) {
	if _, ok := r.Lookup(item.Type, key); !ok {
		return "", false, fmt.Errorf("read %s on %s: %w", key, item.Type, ErrNotRegistered)
	}
	return r.store.Get(item.ID, key)
}

// Delete removes a field value from an item.
func (r *Registry) Delete(contentID uuid.UUID, key string) error {
	return r.store.Delete(contentID, key)
}

// APIValues returns the API-visible registered fields of item. Fields
// without a stored value are reported as the empty string.
func (r *Registry) APIValues(item *models.Content) (map[string]string, error) {
	stored, err := r.store.All(item.ID)
	if err != nil {
		return nil, fmt.Errorf("load meta for api: %w", err)
	}
	out := make(map[string]string)
	for _, f := range r.Fields(item.Type) {
		if f.ShowInAPI {
			out[f.Key] = stored[f.Key]
		}
	}
	return out, nil
}
