package proposal

import (
	"slices"
	"time"

	"proposepress/internal/models"
	"proposepress/internal/sitetime"
)

// PanelState is what the editor panel needs to know about the item being
// edited and the user editing it.
type PanelState struct {
	IsPublished      bool
	HasPublishAction bool
	IsFloating       bool
	Status           models.ContentStatus
}

// NewPanelState derives the panel state of item for user.
func (p *Plugin) NewPanelState(user *models.User, item *models.Content) PanelState {
	return PanelState{
		IsPublished:      item.IsPublished(),
		HasPublishAction: user.Can(models.CapPublishPosts),
		IsFloating:       p.IsFloating(item),
		Status:           item.Status,
	}
}

// IsFloating reports whether the item's date still means "publish
// immediately": its status floats and it was never explicitly dated.
func (p *Plugin) IsFloating(item *models.Content) bool {
	return p.statuses.IsFloating(item.Status) && !item.HasFixedDate()
}

// Is12HourTime reports whether the site time format uses a 12-hour clock.
// The panel tells users which clock to type.
func (p *Plugin) Is12HourTime() bool {
	return sitetime.Is12HourTime(p.cfg.TimeFormat)
}

// PanelStatuses returns the statuses that show the panel.
func (p *Plugin) PanelStatuses() []models.ContentStatus {
	statuses := slices.Clone(p.cfg.PanelStatuses)
	if p.opts.PanelStatuses != nil {
		statuses = p.opts.PanelStatuses(statuses)
	}
	return statuses
}

// PanelVisible reports whether the proposed-date control is shown: the
// item is unpublished, the user cannot publish it, its status is one of
// PanelStatuses and its date is floating.
func (p *Plugin) PanelVisible(state PanelState) bool {
	hasPublish := state.HasPublishAction
	if p.opts.PublishAction != nil {
		hasPublish = p.opts.PublishAction(hasPublish)
	}
	floating := state.IsFloating
	if p.opts.Floating != nil {
		floating = p.opts.Floating(floating)
	}

	if state.IsPublished || hasPublish || !floating {
		return false
	}
	return slices.Contains(p.PanelStatuses(), state.Status)
}

// Immediately is the label shown when the item has no date to show.
const Immediately = "Immediately"

// Label summarizes the effective date: a set date that is not floating,
// else the proposal of a floating item, else "Immediately".
func (p *Plugin) Label(date time.Time, isFloating bool, proposed string) string {
	label := Immediately
	switch {
	case !date.IsZero() && !isFloating:
		label = p.zone.FormatWall(p.DateTimeFormat(), date)
	case isFloating && proposed != "":
		if formatted := p.zone.FormatLocal(p.DateTimeFormat(), proposed); formatted != "" {
			label = formatted
		}
	}
	if p.opts.Label != nil {
		label = p.opts.Label(label)
	}
	return label
}
