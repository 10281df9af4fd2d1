// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"proposepress/internal/models"
	"proposepress/internal/session"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// SessionKey is the context key for the session data.
const SessionKey contextKey = "session"

const (
	loginPath     = "/admin/login"
	setupPath     = "/admin/2fa/setup"
	dashboardPath = "/admin/dashboard"
)

// LoadSession puts the request's session, if any, in the context. It never
// rejects a request; a Valkey failure reads as signed out.
func LoadSession(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("session load failed", "request_id", RequestIDFromCtx(r.Context()), "error", err)
			}
			if data != nil {
				r = r.WithContext(context.WithValue(r.Context(), SessionKey, data))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsHTMX reports whether r was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// Redirect sends the browser to target. An htmx request gets HX-Redirect
// instead, so a partial swap such as the proposed date panel is not filled
// with the login page.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// LoginURL returns the login page carrying the page to come back to. Only
// pages a browser can reopen with GET are remembered; for htmx requests
// that is the page hosting the partial.
func LoginURL(r *http.Request) string {
	var back string
	switch {
	case IsHTMX(r):
		if u, err := url.Parse(r.Header.Get("HX-Current-URL")); err == nil {
			back = u.RequestURI()
		}
	case r.Method == http.MethodGet:
		back = r.URL.RequestURI()
	}
	if SafeNext(back) != back {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(back)
}

// SafeNext returns next when it is a local admin or preview page outside
// the sign-in flow, and the dashboard otherwise.
func SafeNext(next string) string {
	if next == "" || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return dashboardPath
	}
	switch {
	case strings.HasPrefix(next, loginPath), strings.HasPrefix(next, "/admin/2fa/"):
		return dashboardPath
	case strings.HasPrefix(next, "/admin/"), strings.HasPrefix(next, "/preview/"):
		return next
	}
	return dashboardPath
}

// RequireAuth sends signed-out users to the login page. Must be applied
// after LoadSession.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromCtx(r.Context()) == nil {
			Redirect(w, r, LoginURL(r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require2FA holds sessions that have not passed the second factor at the
// setup page, which forwards enrolled users to verification. Must be
// applied after RequireAuth.
func Require2FA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := SessionFromCtx(r.Context()); sess != nil && !sess.TwoFADone {
			Redirect(w, r, setupPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability returns 403 unless the session's role grants want.
// Must be applied after RequireAuth and Require2FA.
func RequireCapability(want models.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromCtx(r.Context())
			if sess == nil || !models.Role(sess.Role).Can(want) {
				slog.Warn("capability denied", "request_id", RequestIDFromCtx(r.Context()), "capability", want, "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromCtx returns the loaded session, or nil when signed out.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}
