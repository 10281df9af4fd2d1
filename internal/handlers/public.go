// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"proposepress/internal/cache"
	"proposepress/internal/engine"
	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/store"
)

// Public groups handlers for the public-facing site. It checks the Valkey
// page cache before invoking the engine, and stores rendered results on
// miss. Previews are never cached.
type Public struct {
	engine       *engine.Engine
	contentStore *store.ContentStore
	pageCache    *cache.PageCache
}

// NewPublic creates a new Public handler group.
func NewPublic(eng *engine.Engine, contentStore *store.ContentStore, pageCache *cache.PageCache) *Public {
	return &Public{
		engine:       eng,
		contentStore: contentStore,
		pageCache:    pageCache,
	}
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

// Homepage renders the listing of published posts.
func (p *Public) Homepage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, ok := p.pageCache.Get(ctx, cache.HomeKey); ok {
		writeHTML(w, cached)
		return
	}

	posts, err := p.contentStore.ListPublishedByType(models.ContentTypePost)
	if err != nil {
		slog.Error("list published posts failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rendered, err := p.engine.RenderPostList(ctx, posts)
	if err != nil {
		slog.Error("render post list failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p.pageCache.Set(ctx, cache.HomeKey, rendered)
	writeHTML(w, rendered)
}

// Page renders a published page or post by its slug.
func (p *Public) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slugParam := chi.URLParam(r, "slug")

	if cached, ok := p.pageCache.Get(ctx, cache.SlugKey(slugParam)); ok {
		writeHTML(w, cached)
		return
	}

	content, err := p.contentStore.FindBySlug(slugParam)
	if err != nil {
		slog.Error("find content by slug failed", "error", err, "slug", slugParam)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if content == nil {
		http.NotFound(w, r)
		return
	}

	rendered, err := p.engine.RenderPage(ctx, content, false)
	if err != nil {
		slog.Error("render page failed", "error", err, "slug", slugParam)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p.pageCache.Set(ctx, cache.SlugKey(slugParam), rendered)
	writeHTML(w, rendered)
}

// Preview renders any item, whatever its status, for a signed-in user who
// may edit it. Dates go through the display filters, so a floating draft
// shows its proposed date.
func (p *Public) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	content, err := p.contentStore.FindByID(id)
	if err != nil {
		slog.Error("find content for preview failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if content == nil {
		http.NotFound(w, r)
		return
	}

	user := sessionUser(middleware.SessionFromCtx(r.Context()))
	if !canEdit(user, content) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	rendered, err := p.engine.RenderPage(r.Context(), content, !content.IsPublished())
	if err != nil {
		slog.Error("render preview failed", "error", err, "id", id)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeHTML(w, rendered)
}
