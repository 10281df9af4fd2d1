// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package engine renders the public site: single pages, the post listing
// and previews of unpublished items. Bodies are markdown. Every date shown
// goes through the host's date-display filters, so features can replace
// it before it reaches the reader.
package engine

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"proposepress/internal/lifecycle"
	"proposepress/internal/markdown"
	"proposepress/internal/models"
	"proposepress/internal/sitetime"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds the site-wide display settings.
type Config struct {
	SiteName   string
	DateFormat string // strftime
	TimeFormat string // strftime
}

// PageData holds all variables available to the page template.
type PageData struct {
	SiteName string
	Title    string
	Body     template.HTML // rendered markdown
	Excerpt  string
	Slug     string
	Date     string // the_date
	Time     string // post time
	Status   string
	Preview  bool
	Year     int
}

// PostItem represents a single post in a listing.
type PostItem struct {
	Title   string
	Slug    string
	Excerpt string
	Date    string // get_the_date
}

// ListData holds variables available to the listing template.
type ListData struct {
	SiteName string
	Title    string
	Posts    []PostItem
	Year     int
}

// Engine renders public pages from the embedded site templates.
type Engine struct {
	cfg   Config
	hooks *lifecycle.Hooks
	zone  *sitetime.Zone
	tmpl  *template.Template
	now   func() time.Time
}

// New parses the site templates and returns a ready engine.
func New(cfg Config, hooks *lifecycle.Hooks, zone *sitetime.Zone) (*Engine, error) {
	if cfg.SiteName == "" {
		cfg.SiteName = "ProposePress"
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse site templates: %w", err)
	}
	return &Engine{cfg: cfg, hooks: hooks, zone: zone, tmpl: tmpl, now: time.Now}, nil
}

// DisplayDate formats the item's date for kind with format and passes the
// result through the date filters.
func (e *Engine) DisplayDate(ctx context.Context, item *models.Content, kind lifecycle.DateKind, format string) string {
	value := e.zone.FormatWall(format, item.Date)
	return e.hooks.FilterDate(ctx, value, kind, format, item)
}

// RenderPage renders a single content item. preview marks renders of items
// that are not public yet.
func (e *Engine) RenderPage(ctx context.Context, content *models.Content, preview bool) ([]byte, error) {
	body, err := markdown.Render(content.Body)
	if err != nil {
		slog.Warn("markdown conversion failed, using escaped body", "error", err, "id", content.ID)
		body = template.HTML(template.HTMLEscapeString(content.Body))
	}

	data := PageData{
		SiteName: e.cfg.SiteName,
		Title:    content.Title,
		Body:     body,
		Slug:     content.Slug,
		Date:     e.DisplayDate(ctx, content, lifecycle.DateKindTheDate, e.cfg.DateFormat),
		Time:     e.DisplayDate(ctx, content, lifecycle.DateKindTime, e.cfg.TimeFormat),
		Status:   string(content.Status),
		Preview:  preview,
		Year:     e.now().Year(),
	}
	if content.Excerpt != nil {
		data.Excerpt = *content.Excerpt
	}

	return e.execute("page.html", data)
}

// RenderPostList renders the listing of posts.
func (e *Engine) RenderPostList(ctx context.Context, posts []models.Content) ([]byte, error) {
	items := make([]PostItem, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		item := PostItem{
			Title: p.Title,
			Slug:  p.Slug,
			Date:  e.DisplayDate(ctx, p, lifecycle.DateKindDate, e.cfg.DateFormat),
		}
		if p.Excerpt != nil && *p.Excerpt != "" {
			item.Excerpt = *p.Excerpt
		} else {
			item.Excerpt = markdown.Summary(p.Body, markdown.SummaryWords)
		}
		items = append(items, item)
	}

	return e.execute("list.html", ListData{
		SiteName: e.cfg.SiteName,
		Title:    "Blog",
		Posts:    items,
		Year:     e.now().Year(),
	})
}

func (e *Engine) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
