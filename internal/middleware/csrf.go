package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
)

const (
	// CSRFCookieName is the cookie holding the double-submit token.
	CSRFCookieName = "pp_csrf"

	// CSRFHeaderName carries the token on HTMX and API requests. The admin
	// layout sets it through hx-headers.
	CSRFHeaderName = "X-CSRF-Token"

	// CSRFFormField carries the token on plain form posts.
	CSRFFormField = "csrf_token"

	csrfKey contextKey = "csrf"
)

// NewCSRF returns double-submit cookie protection. Every request gets a
// token cookie (reused when present) and the token in its context for
// templates. Unsafe methods must echo the token in the X-CSRF-Token
// header; urlencoded and multipart forms may send it as the csrf_token
// field instead. JSON bodies are never parsed for it. secure marks the
// cookie HTTPS only.
func NewCSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfKey, token))

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get(CSRFHeaderName)
			if submitted == "" && isFormBody(r) {
				submitted = r.PostFormValue(CSRFFormField)
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(submitted)) != 1 {
				http.Error(w, "CSRF token mismatch", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isFormBody reports whether the request body is an HTML form encoding.
func isFormBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// CSRFTokenFromCtx returns the CSRF token stored by NewCSRF, or "".
func CSRFTokenFromCtx(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey).(string)
	return token
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
