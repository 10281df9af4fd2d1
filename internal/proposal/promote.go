package proposal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"proposepress/internal/models"
	"proposepress/internal/sitetime"
)

// AcceptProposal is the built-in promotion rule: the item leaves a
// floating status for a fixed one and has never been explicitly dated.
func AcceptProposal(statuses *models.StatusRegistry, oldStatus, newStatus models.ContentStatus, oldDateGMT *time.Time) bool {
	return statuses.IsFloating(oldStatus) &&
		!statuses.IsFloating(newStatus) &&
		oldDateGMT == nil
}

// BeforeSave is the save filter. When the save fixes the date of a
// floating item that carries a proposal, the proposal becomes the item's
// date and the meta field is deleted after the save is persisted.
func (p *Plugin) BeforeSave(ctx context.Context, data, existing *models.Content) *models.Content {
	if data.ID == uuid.Nil || existing == nil || !p.Supports(data.Type) {
		return data
	}

	proposed, ok, err := p.ProposedDate(ctx, existing)
	if err != nil {
		slog.Error("read proposed date", "id", data.ID, "error", err)
		return data
	}
	if !ok {
		return data
	}

	builtin := AcceptProposal(p.statuses, existing.Status, data.Status, existing.DateGMT)
	accept := builtin
	if p.opts.ShouldApply != nil {
		accept = p.opts.ShouldApply(builtin, data.Status, existing.Status, existing)
	}
	if accept != builtin {
		p.metrics.observe(outcomeOverridden)
	}
	if !accept {
		p.metrics.observe(outcomeRejected)
		return data
	}

	if !sitetime.CheckDate(proposed) {
		slog.Warn("did not apply invalid proposed date", "id", data.ID, "proposed", proposed)
		p.metrics.observe(outcomeInvalid)
		return data
	}
	gmt, err := p.zone.GMTFromLocal(proposed)
	if err != nil {
		slog.Warn("did not apply invalid proposed date", "id", data.ID, "proposed", proposed, "error", err)
		p.metrics.observe(outcomeInvalid)
		return data
	}

	data.Date = gmt.In(p.zone.Location())
	data.DateGMT = &gmt
	p.clearAfterSave(ctx, data.ID)
	p.metrics.observe(outcomeApplied)

	slog.Info("applied proposed date", "id", data.ID, "date", proposed, "status", data.Status)
	return data
}

// clearAfterSave registers a one-shot action deleting the proposal of id.
// Saves of other items fire the action too and are ignored. The action
// belongs to the save running in ctx and is dropped if it fails.
func (p *Plugin) clearAfterSave(ctx context.Context, id uuid.UUID) {
	var (
		once   sync.Once
		remove func()
	)
	remove = p.hooks.AddAfterSaveFor(ctx, func(ctx context.Context, savedID uuid.UUID) {
		if savedID != id {
			return
		}
		once.Do(func() {
			remove()
			if err := p.meta.Delete(id, MetaKey); err != nil {
				slog.Error("delete applied proposed date", "id", id, "error", err)
			}
		})
	})
}
