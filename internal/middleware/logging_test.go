package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggerRequestID(t *testing.T) {
	existing := uuid.NewString()
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"valid incoming kept", existing, true},
		{"garbage replaced", "../../etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			var seen string
			h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromCtx(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin/posts", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("response request id %q is not a UUID", got)
			}
			if seen != got {
				t.Errorf("context id %q != header id %q", seen, got)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("incoming id not kept: %q", got)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("incoming id %q should be replaced", tt.incoming)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{"admin page", "/admin/posts", http.StatusOK, "level=INFO"},
		{"server error", "/admin/posts", http.StatusInternalServerError, "level=WARN"},
		{"health check", "/health", http.StatusOK, "level=DEBUG"},
		{"static asset", "/static/build/propose-draft-date.js", http.StatusOK, "level=DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			line := buf.String()
			if !strings.Contains(line, tt.level) {
				t.Errorf("log line %q, want %s", line, tt.level)
			}
			if !strings.Contains(line, "status="+strconv.Itoa(tt.status)) {
				t.Errorf("log line missing status: %q", line)
			}
		})
	}
}

func TestLoggerRecordsImplicitStatusAndSize(t *testing.T) {
	buf := captureLogs(t)
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodPut, "/admin/content/x/proposed-date", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "hello" {
		t.Errorf("body = %q", rec.Body.String())
	}
	line := buf.String()
	for _, want := range []string{"status=200", "bytes=5", "htmx=true", "method=PUT"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}
