package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"proposepress/internal/meta"
	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/store"
)

// maxAPIBody caps JSON request bodies.
const maxAPIBody = 64 << 10

// API serves the session-authenticated JSON content API.
type API struct {
	contentStore *store.ContentStore
	meta         *meta.Registry
}

// NewAPI creates the JSON API handler group.
func NewAPI(contentStore *store.ContentStore, metaRegistry *meta.Registry) *API {
	return &API{contentStore: contentStore, meta: metaRegistry}
}

// contentResponse is the JSON shape of a content item.
type contentResponse struct {
	ID       uuid.UUID         `json:"id"`
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Slug     string            `json:"slug"`
	Status   string            `json:"status"`
	AuthorID uuid.UUID         `json:"author_id"`
	Date     string            `json:"date"`
	DateGMT  *time.Time        `json:"date_gmt"`
	Meta     map[string]string `json:"meta"`
}

// metaRequest is the body of PATCH /api/content/{id}/meta.
type metaRequest struct {
	Meta map[string]string `json:"meta"`
}

// RequireSession answers 401 instead of redirecting when the request has
// no fully authenticated session.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromCtx(r.Context())
		if sess == nil || !sess.TwoFADone {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// load resolves {id} to an item the session user may edit, writing the
// JSON error otherwise.
func (a *API) load(w http.ResponseWriter, r *http.Request) (*models.User, *models.Content) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil, nil
	}
	item, err := a.contentStore.FindByID(id)
	if err != nil {
		slog.Error("api find content failed", "error", err, "id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return nil, nil
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
		return nil, nil
	}
	user := sessionUser(middleware.SessionFromCtx(r.Context()))
	if !canEdit(user, item) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return nil, nil
	}
	return user, item
}

func (a *API) respond(w http.ResponseWriter, item *models.Content) {
	values, err := a.meta.APIValues(item)
	if err != nil {
		slog.Error("api read meta failed", "error", err, "id", item.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{
		ID:       item.ID,
		Type:     string(item.Type),
		Title:    item.Title,
		Slug:     item.Slug,
		Status:   string(item.Status),
		AuthorID: item.AuthorID,
		Date:     item.LocalDate(),
		DateGMT:  item.DateGMT,
		Meta:     values,
	})
}

// GetContent returns an item with its API-visible meta fields.
func (a *API) GetContent(w http.ResponseWriter, r *http.Request) {
	_, item := a.load(w, r)
	if item == nil {
		return
	}
	a.respond(w, item)
}

// UpdateMeta writes registered meta fields. Every key is checked before
// anything is written, so a rejected request changes nothing.
func (a *API) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	user, item := a.load(w, r)
	if item == nil {
		return
	}

	var req metaRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	keys := make([]string, 0, len(req.Meta))
	for key := range req.Meta {
		if _, ok := a.meta.Lookup(item.Type, key); !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "meta field not registered: " + key})
			return
		}
		if !a.meta.CanWrite(user, item.Type, key) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed to write " + key})
			return
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if _, err := a.meta.Write(user, item, key, req.Meta[key]); err != nil {
			switch {
			case errors.Is(err, meta.ErrForbidden):
				writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
			case errors.Is(err, meta.ErrNotRegistered):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			default:
				slog.Error("api write meta failed", "error", err, "id", item.ID, "key", key)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
			return
		}
	}

	slog.Info("content meta updated", "id", item.ID, "keys", keys, "user", user.Email)
	a.respond(w, item)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
