// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"proposepress/internal/models"
	"proposepress/internal/session"
)

func newTestSession(role string, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:    uuid.New(),
		Email:     role + "@proposepress.local",
		Role:      role,
		TwoFADone: twoFADone,
	}
}

func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, SessionKey, data)
}

// okHandler records whether it was reached.
func okHandler() (http.Handler, *bool) {
	var called bool
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestSessionFromCtx(t *testing.T) {
	sess := newTestSession("editor", true)
	if got := SessionFromCtx(ctxWithSession(context.Background(), sess)); got != sess {
		t.Errorf("SessionFromCtx = %+v", got)
	}
	if got := SessionFromCtx(context.Background()); got != nil {
		t.Errorf("empty context gave %+v", got)
	}
	if got := SessionFromCtx(context.WithValue(context.Background(), SessionKey, "not a session")); got != nil {
		t.Errorf("wrong type gave %+v", got)
	}
}

func TestLoadSessionStoreDown(t *testing.T) {
	logs := captureLogs(t)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	var seen *session.Data
	handler := LoadSession(session.NewStore(client, false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "abc"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != nil {
		t.Errorf("session = %+v, want signed out", seen)
	}
	if !strings.Contains(logs.String(), "session load failed") {
		t.Errorf("store failure not logged: %s", logs)
	}
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/admin/posts/42", "/admin/posts/42"},
		{"/admin/content/42/proposed-date", "/admin/content/42/proposed-date"},
		{"/preview/42", "/preview/42"},
		{"", "/admin/dashboard"},
		{"/", "/admin/dashboard"},
		{"https://evil.example/admin/", "/admin/dashboard"},
		{"//evil.example/admin/", "/admin/dashboard"},
		{"/admin/\\evil", "/admin/dashboard"},
		{"/admin/login?next=/admin/posts", "/admin/dashboard"},
		{"/admin/2fa/setup", "/admin/dashboard"},
		{"/hello-world", "/admin/dashboard"},
	}
	for _, tt := range tests {
		if got := SafeNext(tt.next); got != tt.want {
			t.Errorf("SafeNext(%q) = %q, want %q", tt.next, got, tt.want)
		}
	}
}

func TestLoginURL(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/admin/posts?status=draft", nil)
	if got := LoginURL(get); got != "/admin/login?next=%2Fadmin%2Fposts%3Fstatus%3Ddraft" {
		t.Errorf("GET: %q", got)
	}

	post := httptest.NewRequest(http.MethodPost, "/admin/posts", nil)
	if got := LoginURL(post); got != "/admin/login" {
		t.Errorf("POST: %q", got)
	}

	public := httptest.NewRequest(http.MethodGet, "/hello-world", nil)
	if got := LoginURL(public); got != "/admin/login" {
		t.Errorf("public page: %q", got)
	}

	hx := httptest.NewRequest(http.MethodPut, "/admin/content/42/proposed-date", nil)
	hx.Header.Set("HX-Request", "true")
	hx.Header.Set("HX-Current-URL", "https://press.example/admin/posts/42")
	if got := LoginURL(hx); got != "/admin/login?next=%2Fadmin%2Fposts%2F42" {
		t.Errorf("htmx: %q", got)
	}
}

func TestRequireAuth(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		inner, called := okHandler()
		rr := httptest.NewRecorder()
		RequireAuth(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

		if *called {
			t.Error("next handler reached")
		}
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/admin/login?next=%2Fadmin%2Fdashboard" {
			t.Errorf("got %d to %q", rr.Code, rr.Header().Get("Location"))
		}
	})

	t.Run("signed out htmx", func(t *testing.T) {
		inner, _ := okHandler()
		req := httptest.NewRequest(http.MethodGet, "/admin/content/42/proposed-date", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		RequireAuth(inner).ServeHTTP(rr, req)

		if rr.Code != http.StatusOK || rr.Header().Get("HX-Redirect") != "/admin/login" || rr.Header().Get("Location") != "" {
			t.Errorf("got %d, HX-Redirect %q, Location %q", rr.Code, rr.Header().Get("HX-Redirect"), rr.Header().Get("Location"))
		}
	})

	t.Run("signed in", func(t *testing.T) {
		inner, called := okHandler()
		req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
		req = req.WithContext(ctxWithSession(req.Context(), newTestSession("contributor", false)))
		RequireAuth(inner).ServeHTTP(httptest.NewRecorder(), req)

		if !*called {
			t.Error("next handler not reached")
		}
	})
}

func TestRequire2FA(t *testing.T) {
	tests := []struct {
		name    string
		session *session.Data
		htmx    bool
		reached bool
	}{
		{"pending second factor", newTestSession("editor", false), false, false},
		{"pending second factor htmx", newTestSession("contributor", false), true, false},
		{"verified", newTestSession("editor", true), false, true},
		{"no session is left to RequireAuth", nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, called := okHandler()
			req := httptest.NewRequest(http.MethodGet, "/admin/posts", nil)
			if tt.session != nil {
				req = req.WithContext(ctxWithSession(req.Context(), tt.session))
			}
			if tt.htmx {
				req.Header.Set("HX-Request", "true")
			}
			rr := httptest.NewRecorder()
			Require2FA(inner).ServeHTTP(rr, req)

			if *called != tt.reached {
				t.Fatalf("next handler reached = %v, want %v", *called, tt.reached)
			}
			if tt.reached {
				return
			}
			target := rr.Header().Get("Location")
			if tt.htmx {
				target = rr.Header().Get("HX-Redirect")
			}
			if target != "/admin/2fa/setup" {
				t.Errorf("redirect to %q, want /admin/2fa/setup", target)
			}
		})
	}
}

func TestRequireCapability(t *testing.T) {
	tests := []struct {
		name     string
		session  *session.Data
		want     models.Capability
		wantCode int
	}{
		{"no session", nil, models.CapEditPosts, http.StatusForbidden},
		{"subscriber cannot edit", newTestSession("subscriber", true), models.CapEditPosts, http.StatusForbidden},
		{"contributor can edit", newTestSession("contributor", true), models.CapEditPosts, http.StatusOK},
		{"contributor cannot publish", newTestSession("contributor", true), models.CapPublishPosts, http.StatusForbidden},
		{"author can publish", newTestSession("author", true), models.CapPublishPosts, http.StatusOK},
		{"unknown role", newTestSession("ghost", true), models.CapRead, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, called := okHandler()
			req := httptest.NewRequest(http.MethodGet, "/admin/content", nil)
			if tt.session != nil {
				req = req.WithContext(ctxWithSession(req.Context(), tt.session))
			}
			rr := httptest.NewRecorder()
			RequireCapability(tt.want)(inner).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
			if *called != (tt.wantCode == http.StatusOK) {
				t.Errorf("next handler called = %v", *called)
			}
		})
	}
}
