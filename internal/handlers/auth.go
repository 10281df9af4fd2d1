package handlers

import (
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/render"
	"proposepress/internal/session"
	"proposepress/internal/store"
)

// totpIssuer names the site in authenticator apps.
const totpIssuer = "ProposePress"

// totpValidate accepts the previous and next 30 second window too.
var totpValidate = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Auth groups all authentication-related HTTP handlers.
type Auth struct {
	renderer  *render.Renderer
	sessions  *session.Store
	userStore *store.UserStore
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, sessions *session.Store, userStore *store.UserStore) *Auth {
	return &Auth{
		renderer:  renderer,
		sessions:  sessions,
		userStore: userStore,
	}
}

func (a *Auth) renderLogin(w http.ResponseWriter, r *http.Request, next, errMsg string) {
	data := map[string]any{"Next": next}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	a.renderer.Page(w, r, "login", &render.PageData{Title: "Sign In", Data: data})
}

// LoginPage renders the login form. A fully signed-in user goes straight
// to the page named by ?next.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil && sess.TwoFADone {
		http.Redirect(w, r, middleware.SafeNext(next), http.StatusSeeOther)
		return
	}
	a.renderLogin(w, r, next, "")
}

// LoginSubmit checks the password and opens a session that still owes the
// second factor.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := store.NormalizeEmail(r.FormValue("email"))
	next := r.FormValue("next")

	user, err := a.userStore.FindByEmail(email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		a.renderLogin(w, r, next, "An unexpected error occurred.")
		return
	}
	if !a.userStore.CheckPassword(user, r.FormValue("password")) {
		slog.Info("login rejected", "email", email, "request_id", middleware.RequestIDFromCtx(r.Context()))
		a.renderLogin(w, r, next, "Invalid email or password.")
		return
	}

	// A fresh ID on every sign-in; any session the browser held is dropped.
	if err := a.sessions.Revoke(r.Context(), r); err != nil {
		slog.Warn("drop previous session failed", "error", err)
	}
	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		ReturnTo:    middleware.SafeNext(next),
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if user.Needs2FASetup() {
		http.Redirect(w, r, "/admin/2fa/setup", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/2fa/verify", http.StatusSeeOther)
}

// totpKey rebuilds the enrollment key for a stored base32 secret, or makes
// a new secret when there is none yet.
func totpKey(email string, secret *string) (*otp.Key, error) {
	opts := totp.GenerateOpts{Issuer: totpIssuer, AccountName: email}
	if secret != nil {
		raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(*secret))
		if err != nil {
			return nil, fmt.Errorf("decode totp secret: %w", err)
		}
		opts.Secret = raw
	}
	return totp.Generate(opts)
}

// renderSetup shows the QR code for key with an optional error.
func (a *Auth) renderSetup(w http.ResponseWriter, r *http.Request, key *otp.Key, errMsg string) {
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	data := map[string]any{
		"QRCode": base64.StdEncoding.EncodeToString(png),
		"Secret": key.Secret(),
	}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	a.renderer.Page(w, r, "2fa_setup", &render.PageData{
		Title: "Set Up Two-Factor Authentication",
		Data:  data,
	})
}

// sessionUser loads the user behind the request's session, redirecting to
// the login page when either is gone.
func (a *Auth) sessionUser(w http.ResponseWriter, r *http.Request) (*session.Data, *models.User) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return nil, nil
	}
	user, err := a.userStore.FindByID(sess.UserID)
	if err != nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, nil
	}
	if user == nil {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return nil, nil
	}
	return sess, user
}

// TwoFASetupPage shows the enrollment QR code. A secret offered earlier
// but not yet confirmed is shown again, so reloading the page does not
// invalidate a scan in progress. Enrolled users are sent to verification.
func (a *Auth) TwoFASetupPage(w http.ResponseWriter, r *http.Request) {
	sess, user := a.sessionUser(w, r)
	if user == nil {
		return
	}
	if user.TOTPEnabled {
		http.Redirect(w, r, "/admin/2fa/verify", http.StatusSeeOther)
		return
	}

	key, err := totpKey(sess.Email, user.TOTPSecret)
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.TOTPSecret == nil {
		if err := a.userStore.SetTOTPSecret(user.ID, key.Secret()); err != nil {
			slog.Error("save totp secret failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	a.renderSetup(w, r, key, "")
}

// TwoFAVerifyPage renders the code entry form for enrolled users.
func (a *Auth) TwoFAVerifyPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromCtx(r.Context()) == nil {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	a.renderer.Page(w, r, "2fa_verify", &render.PageData{
		Title: "Two-Factor Authentication",
	})
}

// TwoFAVerifySubmit checks the one-time code, finishing enrollment on the
// first success, and sends the user to the page they first asked for.
func (a *Auth) TwoFAVerifySubmit(w http.ResponseWriter, r *http.Request) {
	sess, user := a.sessionUser(w, r)
	if user == nil {
		return
	}
	if user.TOTPSecret == nil {
		http.Redirect(w, r, "/admin/2fa/setup", http.StatusSeeOther)
		return
	}

	code := strings.Join(strings.Fields(r.FormValue("code")), "")
	ok, err := totp.ValidateCustom(code, *user.TOTPSecret, time.Now().UTC(), totpValidate)
	if err != nil || !ok {
		const msg = "Invalid code. Please try again."
		if user.TOTPEnabled {
			a.renderer.Page(w, r, "2fa_verify", &render.PageData{
				Title: "Two-Factor Authentication",
				Data:  map[string]any{"Error": msg},
			})
			return
		}
		key, kerr := totpKey(user.Email, user.TOTPSecret)
		if kerr != nil {
			slog.Error("totp key rebuild failed", "error", kerr)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		a.renderSetup(w, r, key, msg)
		return
	}

	if !user.TOTPEnabled {
		if err := a.userStore.EnableTOTP(user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		slog.Info("2fa enrolled", "user", user.ID)
	}

	target := middleware.SafeNext(sess.ReturnTo)
	sess.TwoFADone = true
	sess.ReturnTo = ""
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout destroys the session and redirects to the login page.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}
