// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render executes the embedded admin templates. A normal request
// gets the page inside base.html; an htmx request gets only its "content"
// block, and Partial serves any other named block.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"proposepress/internal/middleware"
	"proposepress/internal/session"
)

//go:embed templates/admin/*.html
var adminFS embed.FS

// PageData holds all data passed to admin templates.
type PageData struct {
	Title     string          // Page title for <title> tag
	Section   string          // Active sidebar section (e.g., "dashboard", "posts")
	Session   *session.Data   // Current user session (nil if unauthenticated)
	CSRFToken string          // CSRF token for forms and HTMX headers
	Data      map[string]any  // Page-specific data
	Flashes   []session.Flash // One-time notices, filled on full page loads
}

// FlashSource hands out the notices queued for a request, once.
type FlashSource interface {
	PopFlashes(ctx context.Context, r *http.Request) ([]session.Flash, error)
}

// Renderer handles template parsing and execution for admin pages.
type Renderer struct {
	templates map[string]*template.Template
	flashes   FlashSource
	buffers   sync.Pool
}

// standaloneTemplates render without base.html.
var standaloneTemplates = map[string]bool{
	"login":      true,
	"2fa_setup":  true,
	"2fa_verify": true,
}

func funcMap(devMode bool) template.FuncMap {
	return template.FuncMap{
		"activeClass": func(current, target string) string {
			if current == target {
				return "bg-gray-900 text-white"
			}
			return "text-gray-300 hover:bg-gray-700 hover:text-white"
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		// isDev selects CDN assets over the compiled ones.
		"isDev": func() bool { return devMode },
		// relTime renders "3 days ago" style times.
		"relTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return humanize.Time(t)
		},
		// inputDate renders a stored local date for a datetime-local input.
		"inputDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02T15:04")
		},
		// inputLocal turns "YYYY-MM-DD HH:MM:SS" into a datetime-local value.
		"inputLocal": func(s string) string {
			if len(s) < 16 {
				return ""
			}
			return s[:10] + "T" + s[11:16]
		},
	}
}

// New parses every embedded admin template. Pages are paired with
// base.html except the standalone sign-in screens. devMode switches the
// layout to CDN-hosted assets.
func New(devMode bool) (*Renderer, error) {
	files, err := fs.Glob(adminFS, "templates/admin/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	rn := &Renderer{
		templates: make(map[string]*template.Template, len(files)),
		buffers:   sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
	funcs := funcMap(devMode)
	for _, file := range files {
		file := path.Base(file)
		if file == "base.html" {
			continue
		}
		name := strings.TrimSuffix(file, ".html")

		var tmpl *template.Template
		if standaloneTemplates[name] {
			tmpl, err = template.New(file).Funcs(funcs).ParseFS(adminFS, "templates/admin/"+file)
		} else {
			tmpl, err = template.New("base.html").Funcs(funcs).ParseFS(adminFS, "templates/admin/base.html", "templates/admin/"+file)
		}
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
		rn.templates[name] = tmpl
	}
	return rn, nil
}

// UseFlashes makes full page loads show, and consume, the notices src
// holds for the request.
func (rn *Renderer) UseFlashes(src FlashSource) {
	rn.flashes = src
}

// Page renders a full admin page, or its "content" block for htmx.
// Standalone pages always render whole.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	switch {
	case standaloneTemplates[name]:
		rn.execute(w, r, name, name+".html", data)
	case middleware.IsHTMX(r):
		rn.execute(w, r, name, "content", data)
	default:
		if rn.flashes != nil {
			flashes, err := rn.flashes.PopFlashes(r.Context(), r)
			if err != nil {
				slog.Warn("flash read failed", "error", err)
			}
			data.Flashes = append(data.Flashes, flashes...)
		}
		rn.execute(w, r, name, "base.html", data)
	}
}

// Partial renders one named block of a page template, for htmx fragments
// such as the proposed date panel.
func (rn *Renderer) Partial(w http.ResponseWriter, r *http.Request, name, block string, data *PageData) {
	rn.execute(w, r, name, block, data)
}

// execute renders into a pooled buffer first, so a template error yields
// a clean 500 instead of half a page.
func (rn *Renderer) execute(w http.ResponseWriter, r *http.Request, name, block string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok || tmpl.Lookup(block) == nil {
		slog.Error("template missing", "template", name, "block", block)
		http.Error(w, fmt.Sprintf("template %q block %q not found", name, block), http.StatusInternalServerError)
		return
	}

	data.CSRFToken = middleware.CSRFTokenFromCtx(r.Context())
	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(r.Context())
	}

	buf := rn.buffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer rn.buffers.Put(buf)

	if err := tmpl.ExecuteTemplate(buf, block, data); err != nil {
		slog.Error("template execution failed", "template", name, "block", block,
			"request_id", middleware.RequestIDFromCtx(r.Context()), "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
