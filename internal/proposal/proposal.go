// Package proposal lets a contributor propose a publish date for a draft.
//
// The proposal is stored in the proposed_publish_date meta field. While the
// item's date is floating the proposal is displayed in place of the real
// date. When an editor saves the item into a status with a fixed date, the
// proposal is copied into the item's date fields and the meta field is
// deleted once the save has been persisted.
package proposal

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"proposepress/internal/lifecycle"
	"proposepress/internal/meta"
	"proposepress/internal/models"
	"proposepress/internal/sitetime"
)

// MetaKey is the meta field holding the proposal.
const MetaKey = "proposed_publish_date"

// DefaultTypes are the content types supported when none are configured.
var DefaultTypes = []models.ContentType{models.ContentTypePost, models.ContentTypePage}

// DefaultPanelStatuses are the statuses that show the editor panel when
// none are configured.
var DefaultPanelStatuses = []models.ContentStatus{
	models.ContentStatusAutoDraft,
	models.ContentStatusDraft,
	models.ContentStatusFuture,
}

// Options are typed override points. Every field is optional; a nil func
// leaves the built-in value alone. Returned values are used as-is.
type Options struct {
	// SupportedTypes filters the content types the feature applies to.
	SupportedTypes func(types []models.ContentType) []models.ContentType
	// ShouldApply may force-accept or force-reject a proposal at save time.
	// existing is the item as stored before the save.
	ShouldApply func(accept bool, newStatus, oldStatus models.ContentStatus, existing *models.Content) bool
	// Floating overrides whether the panel treats the date as floating.
	Floating func(isFloating bool) bool
	// PanelStatuses filters the statuses that show the editor panel.
	PanelStatuses func(statuses []models.ContentStatus) []models.ContentStatus
	// PublishAction overrides whether the user can publish the item.
	PublishAction func(hasPublishAction bool) bool
	// Label filters the panel label text.
	Label func(label string) string
}

// Config is the site configuration the plugin reads.
type Config struct {
	Types         []models.ContentType   // nil means DefaultTypes
	PanelStatuses []models.ContentStatus // nil means DefaultPanelStatuses
	DateFormat    string                 // strftime
	TimeFormat    string                 // strftime
}

// MetaAccess is the meta storage the plugin reads and deletes through.
// *meta.Registry satisfies it.
type MetaAccess interface {
	Read(item *models.Content, key string) (string, bool, error)
	Delete(contentID uuid.UUID, key string) error
}

// Plugin wires the proposed-date feature into the CMS hooks.
type Plugin struct {
	cfg      Config
	opts     Options
	hooks    *lifecycle.Hooks
	meta     MetaAccess
	statuses *models.StatusRegistry
	zone     *sitetime.Zone
	metrics  *Metrics
}

// New creates the plugin. Call Register to attach it.
func New(cfg Config, opts Options, hooks *lifecycle.Hooks, access MetaAccess,
	statuses *models.StatusRegistry, zone *sitetime.Zone, metrics *Metrics) *Plugin {
	if cfg.Types == nil {
		cfg.Types = DefaultTypes
	}
	if cfg.PanelStatuses == nil {
		cfg.PanelStatuses = DefaultPanelStatuses
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = "%B %d, %Y"
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "%H:%M"
	}
	return &Plugin{
		cfg:      cfg,
		opts:     opts,
		hooks:    hooks,
		meta:     access,
		statuses: statuses,
		zone:     zone,
		metrics:  metrics,
	}
}

// Register declares the meta field for every supported type and adds the
// save filter and the date filters.
func (p *Plugin) Register(registry *meta.Registry) {
	p.RegisterMeta(registry)
	p.hooks.AddSaveFilter(p.BeforeSave)
	p.hooks.AddDateFilter(p.FilterDate)
}

// RegisterMeta declares the proposed_publish_date field.
func (p *Plugin) RegisterMeta(registry *meta.Registry) {
	for _, t := range p.SupportedTypes() {
		registry.Register(t, meta.Field{
			Key:         MetaKey,
			Description: "A proposed date on which to publish a content item.",
			Single:      true,
			Type:        "string",
			ShowInAPI:   true,
			Sanitize:    Sanitize,
			Authorize:   Allow,
		})
	}
}

// SupportedTypes returns the content types the feature applies to.
func (p *Plugin) SupportedTypes() []models.ContentType {
	types := slices.Clone(p.cfg.Types)
	if p.opts.SupportedTypes != nil {
		types = p.opts.SupportedTypes(types)
	}
	return types
}

// Supports reports whether contentType accepts a proposal.
func (p *Plugin) Supports(contentType models.ContentType) bool {
	return slices.Contains(p.SupportedTypes(), contentType)
}

// Allow reports whether user may propose a date. Holding edit_posts is
// enough; publish rights are not needed.
func Allow(user *models.User) bool {
	return user.Can(models.CapEditPosts)
}

// ProposedDate returns the stored proposal of item. Items that are
// published or scheduled report no proposal, as do blank values and items
// of unsupported types.
func (p *Plugin) ProposedDate(_ context.Context, item *models.Content) (string, bool, error) {
	if item == nil || item.ID == uuid.Nil || !p.Supports(item.Type) {
		return "", false, nil
	}
	if item.Status == models.ContentStatusPublish || item.Status == models.ContentStatusFuture {
		return "", false, nil
	}
	value, ok, err := p.meta.Read(item, MetaKey)
	if err != nil || !ok {
		return "", false, err
	}
	if strings.TrimSpace(value) == "" {
		return "", false, nil
	}
	return value, true, nil
}

// DateTimeFormat is the date and time format the panel label uses.
func (p *Plugin) DateTimeFormat() string {
	return p.cfg.DateFormat + " " + p.cfg.TimeFormat
}
