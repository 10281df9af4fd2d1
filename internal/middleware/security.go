// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"strings"
)

// secureHeaders are set on every response.
var secureHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=(), interest-cohort=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
}

// privatePrefixes serve per-user responses that must never be cached by
// the browser or a proxy.
var privatePrefixes = []string{"/admin", "/api/", "/preview/"}

// SecureHeaders adds the hardening headers to every response and marks
// admin, API and preview responses as not storable.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range secureHeaders {
			h.Set(kv[0], kv[1])
		}
		for _, prefix := range privatePrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				h.Set("Cache-Control", "no-store")
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}
