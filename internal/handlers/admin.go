// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for ProposePress.
// Handlers are grouped by concern (admin, api, public, auth) and receive
// their dependencies through the handler struct.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"proposepress/internal/assets"
	"proposepress/internal/cache"
	"proposepress/internal/lifecycle"
	"proposepress/internal/meta"
	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/proposal"
	"proposepress/internal/render"
	"proposepress/internal/session"
	"proposepress/internal/sitetime"
	"proposepress/internal/slug"
	"proposepress/internal/store"
)

// inputDateLayout is the value layout of a datetime-local input.
const inputDateLayout = "2006-01-02T15:04"

// AssetConfig locates the editor bundle.
type AssetConfig struct {
	ManifestPath string // filesystem path of asset-manifest.json
	StaticURL    string // prefix for relative manifest entries
}

// Admin groups all admin panel HTTP handlers and their dependencies.
type Admin struct {
	renderer     *render.Renderer
	contentStore *store.ContentStore
	userStore    *store.UserStore
	pipeline     *lifecycle.Pipeline
	statuses     *models.StatusRegistry
	meta         *meta.Registry
	proposals    *proposal.Plugin
	zone         *sitetime.Zone
	manifests    *assets.Manifests
	assetCfg     AssetConfig
	pageCache    *cache.PageCache
	sessions     *session.Store
}

// NewAdmin creates a new Admin handler group with the given dependencies.
func NewAdmin(renderer *render.Renderer, contentStore *store.ContentStore, userStore *store.UserStore, pipeline *lifecycle.Pipeline, statuses *models.StatusRegistry, metaRegistry *meta.Registry, proposals *proposal.Plugin, zone *sitetime.Zone, manifests *assets.Manifests, assetCfg AssetConfig, pageCache *cache.PageCache, sessions *session.Store) *Admin {
	return &Admin{
		renderer:     renderer,
		contentStore: contentStore,
		userStore:    userStore,
		pipeline:     pipeline,
		statuses:     statuses,
		meta:         metaRegistry,
		proposals:    proposals,
		zone:         zone,
		manifests:    manifests,
		assetCfg:     assetCfg,
		pageCache:    pageCache,
		sessions:     sessions,
	}
}

// sessionUser builds the acting user from the session. A nil session is
// the anonymous user.
func sessionUser(sess *session.Data) *models.User {
	if sess == nil {
		return nil
	}
	return &models.User{
		ID:          sess.UserID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		Role:        models.Role(sess.Role),
	}
}

// canEdit reports whether user may edit item: their own items with
// edit_posts, anyone's with edit_others_posts.
func canEdit(user *models.User, item *models.Content) bool {
	if !user.Can(models.CapEditPosts) {
		return false
	}
	return item.AuthorID == user.ID || user.Can(models.CapEditOthersPosts)
}

// sectionFor returns the admin section of a content type.
func sectionFor(contentType models.ContentType) string {
	if contentType == models.ContentTypePage {
		return "pages"
	}
	return "posts"
}

// Dashboard renders the admin dashboard page with real stats.
func (a *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	postCount, _ := a.contentStore.CountByType(models.ContentTypePost)
	pageCount, _ := a.contentStore.CountByType(models.ContentTypePage)
	users, _ := a.userStore.List()

	a.renderer.Page(w, r, "dashboard", &render.PageData{
		Title:   "Dashboard",
		Section: "dashboard",
		Data: map[string]any{
			"PostCount": postCount,
			"PageCount": pageCount,
			"UserCount": len(users),
		},
	})
}

// --- Posts CRUD ---

// PostsList renders the posts management page.
func (a *Admin) PostsList(w http.ResponseWriter, r *http.Request) {
	a.listContent(w, r, models.ContentTypePost)
}

// PostNew renders the new post form.
func (a *Admin) PostNew(w http.ResponseWriter, r *http.Request) {
	a.newContent(w, r, models.ContentTypePost)
}

// PostCreate handles the new post form submission.
func (a *Admin) PostCreate(w http.ResponseWriter, r *http.Request) {
	a.createContent(w, r, models.ContentTypePost)
}

// PostEdit renders the edit post form.
func (a *Admin) PostEdit(w http.ResponseWriter, r *http.Request) {
	a.editContent(w, r)
}

// PostUpdate handles the edit post form submission.
func (a *Admin) PostUpdate(w http.ResponseWriter, r *http.Request) {
	a.updateContent(w, r)
}

// PostDelete handles post deletion.
func (a *Admin) PostDelete(w http.ResponseWriter, r *http.Request) {
	a.deleteContent(w, r)
}

// --- Pages CRUD ---

// PagesList renders the pages management page.
func (a *Admin) PagesList(w http.ResponseWriter, r *http.Request) {
	a.listContent(w, r, models.ContentTypePage)
}

// PageNew renders the new page form.
func (a *Admin) PageNew(w http.ResponseWriter, r *http.Request) {
	a.newContent(w, r, models.ContentTypePage)
}

// PageCreate handles the new page form submission.
func (a *Admin) PageCreate(w http.ResponseWriter, r *http.Request) {
	a.createContent(w, r, models.ContentTypePage)
}

// PageEdit renders the edit page form.
func (a *Admin) PageEdit(w http.ResponseWriter, r *http.Request) {
	a.editContent(w, r)
}

// PageUpdate handles the edit page form submission.
func (a *Admin) PageUpdate(w http.ResponseWriter, r *http.Request) {
	a.updateContent(w, r)
}

// PageDelete handles page deletion.
func (a *Admin) PageDelete(w http.ResponseWriter, r *http.Request) {
	a.deleteContent(w, r)
}

// --- Shared content helpers ---

// contentRow is one line of the content list.
type contentRow struct {
	Item        models.Content
	StatusLabel string
	DateLabel   string
	Proposed    string
	ProposedAt  time.Time
}

// listContent renders the list of items of contentType. Users who cannot
// edit others' items only see their own.
func (a *Admin) listContent(w http.ResponseWriter, r *http.Request, contentType models.ContentType) {
	user := sessionUser(middleware.SessionFromCtx(r.Context()))
	if user == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var items []models.Content
	var err error
	if user.Can(models.CapEditOthersPosts) {
		items, err = a.contentStore.ListByType(contentType)
	} else {
		items, err = a.contentStore.ListByAuthor(contentType, user.ID)
	}
	if err != nil {
		slog.Error("list content failed", "error", err, "type", contentType)
	}

	rows := make([]contentRow, 0, len(items))
	for i := range items {
		rows = append(rows, a.row(r.Context(), &items[i]))
	}

	title := "Posts"
	if contentType == models.ContentTypePage {
		title = "Pages"
	}
	a.renderer.Page(w, r, "content_list", &render.PageData{
		Title:   title,
		Section: sectionFor(contentType),
		Data: map[string]any{
			"ContentType": string(contentType),
			"Rows":        rows,
		},
	})
}

func (a *Admin) row(ctx context.Context, item *models.Content) contentRow {
	row := contentRow{Item: *item, StatusLabel: string(item.Status)}
	if info, ok := a.statuses.Lookup(item.Status); ok {
		row.StatusLabel = info.Label
	}

	proposed, _, err := a.proposals.ProposedDate(ctx, item)
	if err != nil {
		slog.Warn("read proposed date failed", "error", err, "id", item.ID)
	}
	row.Proposed = proposed
	if proposed != "" {
		if t, err := a.zone.ParseLocal(proposed); err == nil {
			row.ProposedAt = t
		}
	}
	row.DateLabel = a.proposals.Label(item.Date, a.proposals.IsFloating(item), proposed)
	return row
}

// statusChoices lists the statuses user may pick in the form.
func (a *Admin) statusChoices(user *models.User) []models.StatusInfo {
	var out []models.StatusInfo
	for _, info := range a.statuses.All() {
		if info.Name == models.ContentStatusAutoDraft {
			continue
		}
		if info.DateFloating || user.Can(models.CapPublishPosts) {
			out = append(out, info)
		}
	}
	return out
}

// requestedStatus maps a submitted status to one user may set. Unknown
// statuses become draft; users who cannot publish are held at pending.
func (a *Admin) requestedStatus(user *models.User, raw string) models.ContentStatus {
	status := models.ContentStatus(raw)
	if _, ok := a.statuses.Lookup(status); !ok {
		status = models.ContentStatusDraft
	}
	if !user.Can(models.CapPublishPosts) && !a.statuses.IsFloating(status) {
		status = models.ContentStatusPending
	}
	return status
}

// applyDate sets an explicit date from the form. Only users who can
// publish set dates directly; contributors propose them instead. A value
// equal to the current date leaves the item untouched so an unchanged
// form never pins a floating date.
func (a *Admin) applyDate(user *models.User, item *models.Content, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || !user.Can(models.CapPublishPosts) {
		return nil
	}
	if item.HasFixedDate() && raw == item.Date.Format(inputDateLayout) {
		return nil
	}
	t, err := time.ParseInLocation(inputDateLayout, raw, a.zone.Location())
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	gmt := t.UTC()
	item.Date = t
	item.DateGMT = &gmt
	return nil
}

// formData builds the content form data for item.
func (a *Admin) formData(ctx context.Context, user *models.User, item *models.Content, isNew bool, errMsg string) map[string]any {
	data := map[string]any{
		"ContentType": string(item.Type),
		"IsNew":       isNew,
		"Item":        item,
		"Statuses":    a.statusChoices(user),
		"CanPublish":  user.Can(models.CapPublishPosts),
		"EditorAsset": a.editorAsset(),
	}
	if !isNew {
		data["Panel"] = a.panelData(ctx, user, item, "")
	}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	return data
}

// editorAsset renders the editor bundle tag, or nothing when the manifest
// does not list it.
func (a *Admin) editorAsset() template.HTML {
	asset, ok := a.manifests.Register(a.assetCfg.ManifestPath, assets.EditorBundle, assets.EditorHandle, a.assetCfg.StaticURL)
	if !ok {
		return ""
	}
	return asset.Tag()
}

func (a *Admin) renderForm(w http.ResponseWriter, r *http.Request, user *models.User, item *models.Content, isNew bool, errMsg string) {
	title := "Edit "
	if isNew {
		title = "New "
	}
	if item.Type == models.ContentTypePage {
		title += "Page"
	} else {
		title += "Post"
	}
	a.renderer.Page(w, r, "content_form", &render.PageData{
		Title:   title,
		Section: sectionFor(item.Type),
		Data:    a.formData(r.Context(), user, item, isNew, errMsg),
	})
}

// newContent renders the empty form.
func (a *Admin) newContent(w http.ResponseWriter, r *http.Request, contentType models.ContentType) {
	user := sessionUser(middleware.SessionFromCtx(r.Context()))
	item := &models.Content{Type: contentType, Status: models.ContentStatusDraft}
	a.renderForm(w, r, user, item, true, "")
}

// createContent handles creating a new post or page from the form.
func (a *Admin) createContent(w http.ResponseWriter, r *http.Request, contentType models.ContentType) {
	user := sessionUser(middleware.SessionFromCtx(r.Context()))
	if user == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	c := &models.Content{
		Type:     contentType,
		Title:    r.FormValue("title"),
		Slug:     r.FormValue("slug"),
		Body:     r.FormValue("body"),
		Status:   a.requestedStatus(user, r.FormValue("status")),
		AuthorID: user.ID,
	}
	if excerpt := r.FormValue("excerpt"); excerpt != "" {
		c.Excerpt = &excerpt
	}

	if errMsg := validateContent(c); errMsg != "" {
		a.renderForm(w, r, user, c, true, errMsg)
		return
	}
	if err := a.applyDate(user, c, r.FormValue("date")); err != nil {
		a.renderForm(w, r, user, c, true, "Invalid date.")
		return
	}
	if c.Slug == "" {
		c.Slug = slug.Generate(c.Title)
	}

	created, err := a.pipeline.Save(r.Context(), c)
	if err != nil {
		slog.Error("create content failed", "error", err, "type", contentType)
		a.renderForm(w, r, user, c, true, "Failed to create. The slug may already exist.")
		return
	}

	slog.Info("content created", "id", created.ID, "type", contentType, "status", created.Status, "user", user.Email)
	a.invalidateContentCache(r.Context(), created.Slug)
	a.flashSaved(r, created)
	http.Redirect(w, r, "/admin/"+sectionFor(contentType), http.StatusSeeOther)
}

// loadEditable resolves the {id} URL parameter to an item the session
// user may edit. It writes the error response and returns nil otherwise.
func (a *Admin) loadEditable(w http.ResponseWriter, r *http.Request) (*models.User, *models.Content) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return nil, nil
	}

	item, err := a.contentStore.FindByID(id)
	if err != nil {
		slog.Error("find content failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, nil
	}
	if item == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return nil, nil
	}

	user := sessionUser(middleware.SessionFromCtx(r.Context()))
	if !canEdit(user, item) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, nil
	}
	return user, item
}

// editContent renders the edit form for a content item.
func (a *Admin) editContent(w http.ResponseWriter, r *http.Request) {
	user, item := a.loadEditable(w, r)
	if item == nil {
		return
	}
	a.renderForm(w, r, user, item, false, "")
}

// updateContent handles the edit form submission for a content item. The
// save runs through the pipeline, so a pending proposal is promoted when
// the new status fixes the date.
func (a *Admin) updateContent(w http.ResponseWriter, r *http.Request) {
	user, item := a.loadEditable(w, r)
	if item == nil {
		return
	}
	oldSlug := item.Slug

	item.Title = r.FormValue("title")
	item.Body = r.FormValue("body")
	item.Slug = r.FormValue("slug")
	item.Status = a.requestedStatus(user, r.FormValue("status"))
	if excerpt := r.FormValue("excerpt"); excerpt != "" {
		item.Excerpt = &excerpt
	} else {
		item.Excerpt = nil
	}

	if errMsg := validateContent(item); errMsg != "" {
		a.renderForm(w, r, user, item, false, errMsg)
		return
	}
	if err := a.applyDate(user, item, r.FormValue("date")); err != nil {
		a.renderForm(w, r, user, item, false, "Invalid date.")
		return
	}
	if item.Slug == "" {
		item.Slug = slug.Generate(item.Title)
	}

	saved, err := a.pipeline.Save(r.Context(), item)
	if err != nil {
		slog.Error("update content failed", "error", err, "id", item.ID)
		a.renderForm(w, r, user, item, false, "Failed to update. The slug may already exist.")
		return
	}

	slog.Info("content updated", "id", saved.ID, "status", saved.Status, "user", user.Email)
	a.invalidateContentCache(r.Context(), oldSlug)
	if saved.Slug != oldSlug {
		a.invalidateContentCache(r.Context(), saved.Slug)
	}
	a.flashSaved(r, saved)
	http.Redirect(w, r, "/admin/"+sectionFor(saved.Type), http.StatusSeeOther)
}

// flashSaved queues the outcome of a save for the next page the user sees.
func (a *Admin) flashSaved(r *http.Request, c *models.Content) {
	msg := "Saved."
	switch {
	case c.IsScheduled():
		msg = "Scheduled for " + a.zone.FormatWall("%B %d, %Y %H:%M", c.Date) + "."
	case c.IsPublished():
		msg = "Published."
	}
	if err := a.sessions.AddFlash(r.Context(), r, session.Flash{Type: "success", Message: msg}); err != nil {
		slog.Warn("flash write failed", "error", err, "id", c.ID)
	}
}

// deleteContent handles content deletion.
func (a *Admin) deleteContent(w http.ResponseWriter, r *http.Request) {
	_, item := a.loadEditable(w, r)
	if item == nil {
		return
	}

	if err := a.contentStore.Delete(item.ID); err != nil {
		slog.Error("delete content failed", "error", err, "id", item.ID)
	} else {
		a.invalidateContentCache(r.Context(), item.Slug)
	}

	middleware.Redirect(w, r, "/admin/"+sectionFor(item.Type))
}

// --- Proposed publish date panel ---

// panelData builds the proposed-date panel for item as seen by user.
func (a *Admin) panelData(ctx context.Context, user *models.User, item *models.Content, errMsg string) map[string]any {
	proposed, _, err := a.proposals.ProposedDate(ctx, item)
	if err != nil {
		slog.Warn("read proposed date failed", "error", err, "id", item.ID)
	}
	state := a.proposals.NewPanelState(user, item)
	floating := a.statuses.Floating()
	names := make([]string, len(floating))
	for i, s := range floating {
		names[i] = string(s)
	}
	panel := map[string]any{
		"Visible":          a.proposals.PanelVisible(state),
		"ID":               item.ID,
		"Label":            a.proposals.Label(item.Date, state.IsFloating, proposed),
		"Proposed":         proposed,
		"ItemFloating":     state.IsFloating,
		"FloatingStatuses": strings.Join(names, " "),
		"Clock12":          a.proposals.Is12HourTime(),
	}
	if errMsg != "" {
		panel["Error"] = errMsg
	}
	return panel
}

func (a *Admin) renderPanel(w http.ResponseWriter, r *http.Request, user *models.User, item *models.Content, errMsg string) {
	a.renderer.Partial(w, r, "content_form", "proposed_date_panel", &render.PageData{
		Data: map[string]any{"Panel": a.panelData(r.Context(), user, item, errMsg)},
	})
}

// ProposedDatePanel renders the proposed-date panel fragment.
func (a *Admin) ProposedDatePanel(w http.ResponseWriter, r *http.Request) {
	user, item := a.loadEditable(w, r)
	if item == nil {
		return
	}
	a.renderPanel(w, r, user, item, "")
}

// ProposedDateUpdate stores the submitted proposal through the meta
// registry and returns the refreshed panel.
func (a *Admin) ProposedDateUpdate(w http.ResponseWriter, r *http.Request) {
	user, item := a.loadEditable(w, r)
	if item == nil {
		return
	}

	stored, err := a.meta.Write(user, item, proposal.MetaKey, r.FormValue("proposed_date"))
	switch {
	case errors.Is(err, meta.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	case errors.Is(err, meta.ErrNotRegistered):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("write proposed date failed", "error", err, "id", item.ID)
		a.renderPanel(w, r, user, item, "Could not save the proposed date.")
		return
	}

	slog.Info("proposed date set", "id", item.ID, "value", stored, "user", user.Email)
	a.renderPanel(w, r, user, item, "")
}

// --- User management ---

// UsersList renders the user management page with real data.
func (a *Admin) UsersList(w http.ResponseWriter, r *http.Request) {
	users, err := a.userStore.List()
	if err != nil {
		slog.Error("list users failed", "error", err)
	}

	a.renderer.Page(w, r, "users_list", &render.PageData{
		Title:   "Users",
		Section: "users",
		Data:    map[string]any{"Users": users},
	})
}

// UserResetTwoFA resets another user's 2FA, forcing re-setup on next login.
func (a *Admin) UserResetTwoFA(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	// Cannot reset your own 2FA.
	if targetID == sess.UserID {
		http.Error(w, "Cannot reset your own 2FA", http.StatusForbidden)
		return
	}

	if err := a.userStore.ResetTOTP(targetID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("reset 2fa failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// The old second factor must not keep existing sign-ins alive.
	revoked, err := a.sessions.RevokeUser(r.Context(), targetID)
	if err != nil {
		slog.Error("revoke sessions failed", "error", err, "target_user", targetID)
	}

	slog.Info("2fa reset by admin", "admin", sess.Email, "target_user", targetID, "sessions_revoked", revoked)
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

// userRoles lists the roles offered on the new user form.
var userRoles = []models.Role{
	models.RoleContributor,
	models.RoleAuthor,
	models.RoleEditor,
	models.RoleAdmin,
	models.RoleSubscriber,
}

// UserNew renders the new user creation form.
func (a *Admin) UserNew(w http.ResponseWriter, r *http.Request) {
	a.renderer.Page(w, r, "user_form", &render.PageData{
		Title:   "New User",
		Section: "users",
		Data: map[string]any{
			"Email":       "",
			"DisplayName": "",
			"Role":        string(models.RoleContributor),
			"Roles":       userRoles,
		},
	})
}

// UserCreate handles the new user form submission.
func (a *Admin) UserCreate(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	password := r.FormValue("password")
	role := models.Role(r.FormValue("role"))

	formErr := func(msg string) {
		a.renderer.Page(w, r, "user_form", &render.PageData{
			Title:   "New User",
			Section: "users",
			Data: map[string]any{
				"Error":       msg,
				"Email":       email,
				"DisplayName": displayName,
				"Role":        string(role),
				"Roles":       userRoles,
			},
		})
	}

	if errMsg := validateUser(email, displayName, password, role); errMsg != "" {
		formErr(errMsg)
		return
	}

	if _, err := a.userStore.Create(email, password, displayName, role); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			formErr("A user with this email already exists.")
			return
		}
		slog.Error("create user failed", "error", err)
		formErr("Failed to create user.")
		return
	}

	sess := middleware.SessionFromCtx(r.Context())
	slog.Info("user created", "admin", sess.Email, "new_user", email, "role", role)

	middleware.Redirect(w, r, "/admin/users")
}

// --- Cache invalidation helpers ---

// invalidateContentCache purges the page cache for a slug. The homepage
// goes too since post listings might have changed.
func (a *Admin) invalidateContentCache(ctx context.Context, contentSlug string) {
	a.pageCache.Invalidate(ctx, contentSlug)
}
