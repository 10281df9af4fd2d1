package models

import "sync"

// StatusInfo describes how a content status behaves.
type StatusInfo struct {
	Name  ContentStatus
	Label string
	// DateFloating marks statuses whose publish date is not fixed yet:
	// saving such an item implies "publish immediately" until a date is set.
	DateFloating bool
	// Public marks statuses visible on the public site.
	Public bool
}

// StatusRegistry is the set of known content statuses. Rules that need to
// know whether a status floats must ask the registry rather than compare
// against a hardcoded list, so custom statuses can join in.
type StatusRegistry struct {
	mu       sync.RWMutex
	statuses map[ContentStatus]StatusInfo
	order    []ContentStatus
}

// NewStatusRegistry returns a registry holding the built-in statuses.
func NewStatusRegistry() *StatusRegistry {
	r := &StatusRegistry{statuses: make(map[ContentStatus]StatusInfo)}
	for _, info := range []StatusInfo{
		{Name: ContentStatusAutoDraft, Label: "Auto Draft", DateFloating: true},
		{Name: ContentStatusDraft, Label: "Draft", DateFloating: true},
		{Name: ContentStatusPending, Label: "Pending Review", DateFloating: true},
		{Name: ContentStatusFuture, Label: "Scheduled"},
		{Name: ContentStatusPublish, Label: "Published", Public: true},
		{Name: ContentStatusPrivate, Label: "Private"},
	} {
		r.Register(info)
	}
	return r
}

// Register adds or replaces a status definition.
func (r *StatusRegistry) Register(info StatusInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.statuses[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	}
	r.statuses[info.Name] = info
}

// Lookup returns the definition of a status.
func (r *StatusRegistry) Lookup(status ContentStatus) (StatusInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.statuses[status]
	return info, ok
}

// IsFloating reports whether status has date-floating semantics. Unknown
// statuses are not floating.
func (r *StatusRegistry) IsFloating(status ContentStatus) bool {
	info, ok := r.Lookup(status)
	return ok && info.DateFloating
}

// Floating lists every date-floating status in registration order.
func (r *StatusRegistry) Floating() []ContentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ContentStatus
	for _, name := range r.order {
		if r.statuses[name].DateFloating {
			out = append(out, name)
		}
	}
	return out
}

// All returns every registered status in registration order.
func (r *StatusRegistry) All() []StatusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StatusInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.statuses[name])
	}
	return out
}
