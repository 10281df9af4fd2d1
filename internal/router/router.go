// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for
// ProposePress. It organizes routes into public, admin and API groups with
// appropriate middleware stacks.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proposepress/internal/handlers"
	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/session"
	"proposepress/web"
)

// Handlers bundles the handler groups the router mounts.
type Handlers struct {
	Admin  *handlers.Admin
	API    *handlers.API
	Auth   *handlers.Auth
	Public *handlers.Public
}

// Options tune the middleware stack.
type Options struct {
	SecureCookies bool                    // mark the CSRF cookie Secure
	LoginLimiter  *middleware.RateLimiter // nil disables login throttling
	Metrics       http.Handler            // nil serves the default registry
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(sessionStore *session.Store, h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(sessionStore))

	// Health check and metrics: no auth, no CSRF.
	r.Get("/health", healthHandler)
	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	// Compiled admin assets and the editor bundle.
	if static, err := fs.Sub(web.StaticFS, "static"); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	csrf := middleware.NewCSRF(opts.SecureCookies)

	r.Route("/admin", func(r chi.Router) {
		r.Use(csrf)

		// Auth pages, accessible without a session.
		r.Get("/login", h.Auth.LoginPage)
		if opts.LoginLimiter != nil {
			r.With(opts.LoginLimiter.Middleware).Post("/login", h.Auth.LoginSubmit)
		} else {
			r.Post("/login", h.Auth.LoginSubmit)
		}
		r.Post("/logout", h.Auth.Logout)

		// 2FA requires auth but not completed 2FA.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/2fa/setup", h.Auth.TwoFASetupPage)
			r.Get("/2fa/verify", h.Auth.TwoFAVerifyPage)
			r.Post("/2fa/verify", h.Auth.TwoFAVerifySubmit)
		})

		// Authenticated and 2FA-verified admin area.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)
			r.Use(middleware.RequireCapability(models.CapEditPosts))

			r.Get("/", h.Admin.Dashboard)
			r.Get("/dashboard", h.Admin.Dashboard)

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", h.Admin.PostsList)
				r.Get("/new", h.Admin.PostNew)
				r.Post("/", h.Admin.PostCreate)
				r.Get("/{id}", h.Admin.PostEdit)
				r.Post("/{id}", h.Admin.PostUpdate)
				r.Put("/{id}", h.Admin.PostUpdate)
				r.Delete("/{id}", h.Admin.PostDelete)
			})

			r.Route("/pages", func(r chi.Router) {
				r.Get("/", h.Admin.PagesList)
				r.Get("/new", h.Admin.PageNew)
				r.Post("/", h.Admin.PageCreate)
				r.Get("/{id}", h.Admin.PageEdit)
				r.Post("/{id}", h.Admin.PageUpdate)
				r.Put("/{id}", h.Admin.PageUpdate)
				r.Delete("/{id}", h.Admin.PageDelete)
			})

			// Proposed publish date panel.
			r.Get("/content/{id}/proposed-date", h.Admin.ProposedDatePanel)
			r.Put("/content/{id}/proposed-date", h.Admin.ProposedDateUpdate)

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireCapability(models.CapManageUsers))
				r.Get("/", h.Admin.UsersList)
				r.Get("/new", h.Admin.UserNew)
				r.Post("/", h.Admin.UserCreate)
				r.Post("/{id}/reset-2fa", h.Admin.UserResetTwoFA)
			})
		})
	})

	// JSON API. Session-authenticated, so state changes need the CSRF header.
	r.Route("/api", func(r chi.Router) {
		r.Use(csrf)
		r.Use(h.API.RequireSession)
		r.Get("/content/{id}", h.API.GetContent)
		r.Patch("/content/{id}/meta", h.API.UpdateMeta)
	})

	// Previews render any status for users who may edit the item.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.Require2FA)
		r.Get("/preview/{id}", h.Public.Preview)
	})

	r.Get("/", h.Public.Homepage)
	r.Get("/{slug}", h.Public.Page)

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
