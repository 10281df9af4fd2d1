// Package lifecycle holds the CMS hook points and the content save
// pipeline. Features plug into a save by registering filters and
// after-save actions on Hooks; rendering asks Hooks to filter every date
// it prints.
package lifecycle

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"proposepress/internal/models"
)

// SaveFilter may rewrite the payload of a save before it is persisted.
// existing is nil for new items. The returned payload is used as-is.
type SaveFilter func(ctx context.Context, data *models.Content, existing *models.Content) *models.Content

// AfterSaveFunc runs once a save has been persisted, with the saved ID.
type AfterSaveFunc func(ctx context.Context, id uuid.UUID)

// DateKind names the entry point asking for a formatted date.
type DateKind string

const (
	DateKindDate    DateKind = "date"     // the item's date in any format
	DateKindTheDate DateKind = "the_date" // the date heading in listings
	DateKindTime    DateKind = "time"     // the time of day
)

// DateFilter may replace value, the item's date already rendered with
// format, before it is displayed.
type DateFilter func(ctx context.Context, value string, kind DateKind, format string, item *models.Content) string

type afterSaveEntry struct {
	id int
	fn AfterSaveFunc
}

// Hooks is the registry of save filters, after-save actions and date
// filters. It is safe for concurrent use; callbacks run outside the lock
// so they may register or remove hooks themselves.
type Hooks struct {
	mu          sync.RWMutex
	saveFilters []SaveFilter
	afterSave   []afterSaveEntry
	dateFilters []DateFilter
	nextID      int
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{}
}

// AddSaveFilter appends a save filter. Filters run in registration order.
func (h *Hooks) AddSaveFilter(f SaveFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saveFilters = append(h.saveFilters, f)
}

// AddAfterSave registers an action and returns a func that removes it.
// Calling the remover more than once is harmless.
func (h *Hooks) AddAfterSave(fn AfterSaveFunc) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.afterSave = append(h.afterSave, afterSaveEntry{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, e := range h.afterSave {
			if e.id == id {
				h.afterSave = append(h.afterSave[:i:i], h.afterSave[i+1:]...)
				return
			}
		}
	}
}

type saveScopeKey struct{}

// saveScope collects the removers of actions registered while one save is
// in flight, so a save that fails to persist can take them back.
type saveScope struct {
	mu       sync.Mutex
	removers []func()
}

func (s *saveScope) add(remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removers = append(s.removers, remove)
}

func (s *saveScope) discard() {
	s.mu.Lock()
	removers := s.removers
	s.removers = nil
	s.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
}

// AddAfterSaveFor registers fn like AddAfterSave. When ctx is the context
// of a save filter, the action is dropped again if that save is not
// persisted.
func (h *Hooks) AddAfterSaveFor(ctx context.Context, fn AfterSaveFunc) (remove func()) {
	remove = h.AddAfterSave(fn)
	if s, ok := ctx.Value(saveScopeKey{}).(*saveScope); ok {
		s.add(remove)
	}
	return remove
}

// AddDateFilter appends a date filter.
func (h *Hooks) AddDateFilter(f DateFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dateFilters = append(h.dateFilters, f)
}

// ApplySaveFilters threads data through every save filter.
func (h *Hooks) ApplySaveFilters(ctx context.Context, data, existing *models.Content) *models.Content {
	h.mu.RLock()
	filters := append([]SaveFilter(nil), h.saveFilters...)
	h.mu.RUnlock()

	for _, f := range filters {
		data = f(ctx, data, existing)
	}
	return data
}

// FireAfterSave runs every after-save action registered at the time of
// the call.
func (h *Hooks) FireAfterSave(ctx context.Context, id uuid.UUID) {
	h.mu.RLock()
	entries := append([]afterSaveEntry(nil), h.afterSave...)
	h.mu.RUnlock()

	for _, e := range entries {
		e.fn(ctx, id)
	}
}

// AfterSaveCount returns the number of registered after-save actions.
func (h *Hooks) AfterSaveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.afterSave)
}

// FilterDate passes a rendered date through every date filter.
func (h *Hooks) FilterDate(ctx context.Context, value string, kind DateKind, format string, item *models.Content) string {
	h.mu.RLock()
	filters := append([]DateFilter(nil), h.dateFilters...)
	h.mu.RUnlock()

	for _, f := range filters {
		value = f(ctx, value, kind, format, item)
	}
	return value
}
