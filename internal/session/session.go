// Package session keeps signed-in users in Valkey. The browser holds only
// a random ID; the payload lives under pp:session:<id> and each user's
// live IDs are indexed under pp:user-sessions:<uuid> so an admin action
// can sign that user out everywhere.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName is the session cookie sent to the browser.
	CookieName = "pp_session"

	// DefaultTTL is the idle lifetime. Every Get pushes expiry back by it.
	DefaultTTL = 24 * time.Hour

	sessionPrefix = "pp:session:"
	userPrefix    = "pp:user-sessions:"
	flashPrefix   = "pp:flash:"

	// flashTTL bounds how long an unread notice waits for the next page.
	flashTTL = 5 * time.Minute
)

// ErrNoSession is returned by Update when the request has no session cookie.
var ErrNoSession = errors.New("no session cookie")

// Data is the session payload.
type Data struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	TwoFADone   bool      `json:"two_fa_done"`
	ReturnTo    string    `json:"return_to,omitempty"` // page to open once 2FA passes
	CreatedAt   time.Time `json:"created_at"`
}

// Flash is a one-time notice shown on the next full admin page.
type Flash struct {
	Type    string `json:"type"` // "success" or "error"
	Message string `json:"message"`
}

// Store manages sessions in Valkey.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore returns a session store. secure marks the cookie HTTPS only.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{client: client, ttl: DefaultTTL, secure: secure}
}

func sessionKey(id string) string      { return sessionPrefix + id }
func flashKey(id string) string        { return flashPrefix + id }
func userKey(userID uuid.UUID) string { return userPrefix + userID.String() }

// Create stores data under a fresh ID, indexes it for the user and sets
// the cookie. It returns the new ID.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id, err := newID()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	data.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(id), payload, s.ttl)
		pipe.SAdd(ctx, userKey(data.UserID), id)
		pipe.Expire(ctx, userKey(data.UserID), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	s.setCookie(w, id, int(s.ttl.Seconds()))
	return id, nil
}

// Get returns the session named by the request cookie and slides its
// expiry. It returns nil, nil when there is no cookie or the session is
// gone.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	payload, err := s.client.GetEx(ctx, sessionKey(cookie.Value), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.client.Expire(ctx, userKey(data.UserID), s.ttl)
	return &data, nil
}

// Update rewrites the payload of the request's session in place.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return fmt.Errorf("update session: %w", ErrNoSession)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	// XX: a session revoked meanwhile must stay revoked.
	if err := s.client.SetArgs(ctx, sessionKey(cookie.Value), payload, redis.SetArgs{Mode: "XX", TTL: s.ttl}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Revoke deletes the request's session server-side and leaves the cookie
// alone. Login calls it so a new session never inherits an old ID.
func (s *Store) Revoke(ctx context.Context, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	s.client.Del(ctx, flashKey(cookie.Value))
	payload, err := s.client.GetDel(ctx, sessionKey(cookie.Value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	var data Data
	if json.Unmarshal(payload, &data) == nil {
		s.client.SRem(ctx, userKey(data.UserID), cookie.Value)
	}
	return nil
}

// Destroy revokes the request's session and expires the cookie.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if _, err := r.Cookie(CookieName); err != nil {
		return nil
	}
	s.setCookie(w, "", -1)
	return s.Revoke(ctx, r)
}

// RevokeUser deletes every live session of userID and returns how many
// were removed.
func (s *Store) RevokeUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	if deleted == nil {
		return 0, nil
	}
	return deleted.Val(), nil
}

// AddFlash queues f for the request's session. Without a session it does
// nothing.
func (s *Store) AddFlash(ctx context.Context, r *http.Request, f Flash) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode flash: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, flashKey(cookie.Value), payload)
		pipe.Expire(ctx, flashKey(cookie.Value), flashTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue flash: %w", err)
	}
	return nil
}

// PopFlashes returns and clears the notices queued for the request's
// session, oldest first.
func (s *Store) PopFlashes(ctx context.Context, r *http.Request) ([]Flash, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	var queued *redis.StringSliceCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		queued = pipe.LRange(ctx, flashKey(cookie.Value), 0, -1)
		pipe.Del(ctx, flashKey(cookie.Value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read flashes: %w", err)
	}

	var flashes []Flash
	for _, raw := range queued.Val() {
		var f Flash
		if err := json.Unmarshal([]byte(raw), &f); err == nil {
			flashes = append(flashes, f)
		}
	}
	return flashes, nil
}

func (s *Store) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
