package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"proposepress/internal/models"
	"proposepress/internal/sitetime"
)

// ErrNotFound is returned when saving an ID that does not exist.
var ErrNotFound = errors.New("content not found")

// ContentStore is the persistence the pipeline saves through.
// *store.ContentStore satisfies it.
type ContentStore interface {
	FindByID(id uuid.UUID) (*models.Content, error)
	Create(c *models.Content) (*models.Content, error)
	Update(c *models.Content) error
}

// Pipeline saves content: it settles the dates, runs the save filters,
// persists the result and then fires the after-save actions.
type Pipeline struct {
	store    ContentStore
	hooks    *Hooks
	statuses *models.StatusRegistry
	zone     *sitetime.Zone
}

// NewPipeline creates a save pipeline.
func NewPipeline(store ContentStore, hooks *Hooks, statuses *models.StatusRegistry, zone *sitetime.Zone) *Pipeline {
	return &Pipeline{store: store, hooks: hooks, statuses: statuses, zone: zone}
}

// Hooks returns the hook registry the pipeline fires.
func (p *Pipeline) Hooks() *Hooks {
	return p.hooks
}

// Save persists c and returns the stored item. A zero ID creates a new
// item. The caller's value is not modified.
func (p *Pipeline) Save(ctx context.Context, c *models.Content) (*models.Content, error) {
	data := *c

	var existing *models.Content
	if data.ID != uuid.Nil {
		var err error
		existing, err = p.store.FindByID(data.ID)
		if err != nil {
			return nil, fmt.Errorf("save content: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("save content %s: %w", data.ID, ErrNotFound)
		}
	}

	p.normalizeDates(&data, existing)

	scope := &saveScope{}
	out := p.hooks.ApplySaveFilters(context.WithValue(ctx, saveScopeKey{}, scope), &data, existing)

	p.reconcileStatus(out)

	saved, err := p.persist(out, existing)
	if err != nil {
		scope.discard()
		return nil, fmt.Errorf("save content: %w", err)
	}

	slog.Debug("content saved", "id", saved.ID, "status", saved.Status)
	p.hooks.FireAfterSave(ctx, saved.ID)
	return saved, nil
}

func (p *Pipeline) persist(c, existing *models.Content) (*models.Content, error) {
	if existing == nil {
		return p.store.Create(c)
	}
	if err := p.store.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

// normalizeDates fills in the dates a payload leaves open. A floating
// item keeps a nil DateGMT; an item leaving a floating status without an
// explicit date is dated now.
func (p *Pipeline) normalizeDates(data, existing *models.Content) {
	now := p.zone.Now()
	floating := p.statuses.IsFloating(data.Status)

	if existing == nil {
		if data.Date.IsZero() {
			data.Date = now
		}
		if !floating && data.DateGMT == nil {
			gmt := p.zone.GMT(data.Date)
			data.DateGMT = &gmt
		}
		return
	}

	if data.Date.IsZero() {
		data.Date = existing.Date
	}
	if !floating && data.DateGMT == nil {
		if p.statuses.IsFloating(existing.Status) {
			data.Date = now
		}
		gmt := p.zone.GMT(data.Date)
		data.DateGMT = &gmt
	}
}

// reconcileStatus moves publish to future for dates ahead, and future to
// publish for dates already passed.
func (p *Pipeline) reconcileStatus(c *models.Content) {
	if !c.HasFixedDate() {
		return
	}
	now := p.zone.Now()
	switch {
	case c.IsPublished() && c.DateGMT.After(now):
		c.Status = models.ContentStatusFuture
	case c.IsScheduled() && !c.DateGMT.After(now):
		c.Status = models.ContentStatusPublish
	}
}
